package shaderc

// ScalarType is the element type underlying a Type, per
// original_source/engine/include/vull/shaderc/type.hh.
type ScalarType uint8

const (
	ScalarInvalid ScalarType = iota
	ScalarFloat
	ScalarInt
	ScalarUint
	ScalarVoid
	ScalarSampler
)

// ImageType distinguishes sampled image dimensionality; unused by the
// scalar/vector/matrix types the parser currently constructs, but carried
// through per spec.md §3 ("optional image_type").
type ImageType uint8

const (
	ImageInvalid ImageType = iota
	Image2D
	Image3D
	ImageCube
)

// Type is scalar/vector/matrix classification in one packed value, per
// spec.md §3: "(scalar, optional image_type, vector_size 1..4, matrix_cols
// 1..4). Matrix iff matrix_cols > 1; vector iff non-matrix and
// vector_size > 1."
type Type struct {
	Scalar     ScalarType
	Image      ImageType
	VectorSize uint8
	MatrixCols uint8
	HasSampler bool
}

// MakeScalar builds a bare scalar Type.
func MakeScalar(scalar ScalarType) Type {
	return Type{Scalar: scalar, VectorSize: 1, MatrixCols: 1}
}

// MakeVector builds a vector Type of the given element count.
func MakeVector(scalar ScalarType, size uint8) Type {
	return Type{Scalar: scalar, VectorSize: size, MatrixCols: 1}
}

// MakeMatrix builds a column-major matrix Type; rows is carried in
// VectorSize per the teacher's matrix_rows()==vector_size() accessor.
func MakeMatrix(scalar ScalarType, rows, cols uint8) Type {
	return Type{Scalar: scalar, VectorSize: rows, MatrixCols: cols}
}

// MakeImage builds a sampled-image Type.
func MakeImage(scalar ScalarType, image ImageType, hasSampler bool) Type {
	return Type{Scalar: scalar, Image: image, HasSampler: hasSampler}
}

func (t Type) IsValid() bool  { return t.Scalar != ScalarInvalid }
func (t Type) IsImage() bool  { return t.Image != ImageInvalid }
func (t Type) IsMatrix() bool { return t.MatrixCols > 1 }
func (t Type) IsVector() bool { return !t.IsMatrix() && t.VectorSize > 1 }
func (t Type) IsScalar() bool { return !t.IsImage() && !t.IsMatrix() && !t.IsVector() }

// MatrixRows mirrors the teacher's Type::matrix_rows(), which reuses the
// vector_size field to store row count for matrix types.
func (t Type) MatrixRows() uint8 { return t.VectorSize }

// builtinTypes maps source-language type names to Types, per the
// teacher's Parser::m_builtin_type_map construction in parser.cc.
var builtinTypes = map[string]Type{
	"float": MakeScalar(ScalarFloat),
	"vec2":  MakeVector(ScalarFloat, 2),
	"vec3":  MakeVector(ScalarFloat, 3),
	"vec4":  MakeVector(ScalarFloat, 4),
	"ivec2": MakeVector(ScalarInt, 2),
	"ivec3": MakeVector(ScalarInt, 3),
	"ivec4": MakeVector(ScalarInt, 4),
	"uvec2": MakeVector(ScalarUint, 2),
	"uvec3": MakeVector(ScalarUint, 3),
	"uvec4": MakeVector(ScalarUint, 4),
	"mat3":  MakeMatrix(ScalarFloat, 3, 3),
	"mat4":  MakeMatrix(ScalarFloat, 4, 4),
}
