//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// buildShaderc compiles the engine/shaderc VSL-to-SPIR-V CLI (cmd/shaderc),
// the repository's one real binary.
func buildShaderc() error {
	fmt.Println("Build shaderc...")
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/shaderc", "./cmd/shaderc"), withStream()); err != nil {
		return err
	}
	return nil
}

// Shaderc builds the shaderc CLI into bin/shaderc.
func (Build) Shaderc() error {
	return buildShaderc()
}
