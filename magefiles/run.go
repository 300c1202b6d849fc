//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Shaderc builds the shaderc CLI and runs it against the given VSL source
// files, e.g. `mage run:shaderc engine/shaderc/testdata/basic.vsl`.
func (Run) Shaderc(files ...string) error {
	if err := buildShaderc(); err != nil {
		return err
	}
	fmt.Println("Run shaderc...")
	if _, err := executeCmd("bin/shaderc", withArgs(files...), withStream()); err != nil {
		return err
	}
	return nil
}
