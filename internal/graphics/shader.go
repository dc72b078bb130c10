package graphics

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"renderstar/internal/assets"
)

// ShaderStage is one programmable pipeline stage. Names follow Direct3D;
// Pixel is the fragment stage, Domain and Hull are the tessellation
// evaluation and control stages.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StagePixel
	StageCompute
	StageDomain
	StageGeometry
	StageHull
)

// AllStages lists stages in lookup order
var AllStages = []ShaderStage{StageVertex, StagePixel, StageCompute, StageDomain, StageGeometry, StageHull}

// String returns the file suffix used for the stage
func (s ShaderStage) String() string {
	if int(s) < len(assets.StageSuffixes) {
		return assets.StageSuffixes[s]
	}
	return "Unknown"
}

// ErrNoStages is returned when no stage source exists for a shader
var ErrNoStages = errors.New("graphics: no shader stage sources found")

// ErrShaderNotGenerated is returned when binding a shader before Generate
var ErrShaderNotGenerated = errors.New("graphics: shader not generated")

// StageError reports the stage and file that stopped a shader from building
type StageError struct {
	Shader string
	Stage  ShaderStage
	Path   string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("shader %s: %s stage (%s): %v", e.Shader, e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Shader is a named program assembled from the stage sources found under
// Assets/<domain>/<localPath><Stage>.<ext>. Missing stages are skipped.
type Shader struct {
	name      string
	domain    string
	localPath string
	layout    *VertexLayout

	compiler    ShaderCompiler
	program     ProgramHandle
	stages      []ShaderStage
	inputLayout bool
}

// NewShader describes a shader; Generate compiles it
func NewShader(name, domain, localPath string) *Shader {
	return &Shader{
		name:      name,
		domain:    domain,
		localPath: localPath,
		layout:    StandardVertexLayout,
	}
}

func (s *Shader) Name() string { return s.name }

// SetInputLayout sets the vertex layout the input layout is derived from
func (s *Shader) SetInputLayout(l *VertexLayout) { s.layout = l }

// Generate compiles every present stage and links them. A stage whose file
// is present but fails to read or compile aborts with a *StageError and
// releases whatever was compiled so far.
func (s *Shader) Generate(compiler ShaderCompiler, locator assets.Locator) error {
	if s.compiler != nil {
		return fmt.Errorf("shader %s: already generated", s.name)
	}

	var handles []StageHandle
	var present []ShaderStage
	release := func() {
		for _, h := range handles {
			compiler.DestroyStage(h)
		}
	}

	for _, stage := range AllStages {
		p := locator.StagePath(s.domain, s.localPath, stage.String(), compiler.SourceExtension())
		src, err := locator.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			release()
			return &StageError{Shader: s.name, Stage: stage, Path: p, Err: err}
		}
		h, err := compiler.CompileStage(stage, p, src)
		if err != nil {
			release()
			return &StageError{Shader: s.name, Stage: stage, Path: p, Err: err}
		}
		handles = append(handles, h)
		present = append(present, stage)
	}

	if len(handles) == 0 {
		return fmt.Errorf("shader %s (%s): %w", s.name, locator.AssetPath(s.domain, s.localPath), ErrNoStages)
	}

	var layout *VertexLayout
	if slices.Contains(present, StageVertex) && slices.Contains(present, StagePixel) {
		layout = s.layout
	}
	program, err := compiler.LinkProgram(handles, layout)
	if err != nil {
		return fmt.Errorf("shader %s: link: %w", s.name, err)
	}

	s.compiler = compiler
	s.program = program
	s.stages = present
	s.inputLayout = layout != nil
	return nil
}

// Stages returns the stages that were compiled
func (s *Shader) Stages() []ShaderStage { return slices.Clone(s.stages) }

// HasStage reports whether stage was compiled into the program
func (s *Shader) HasStage(stage ShaderStage) bool { return slices.Contains(s.stages, stage) }

// HasInputLayout reports whether a vertex input layout was derived
func (s *Shader) HasInputLayout() bool { return s.inputLayout }

// Program returns the backend program handle
func (s *Shader) Program() ProgramHandle { return s.program }

// Bind activates every compiled stage and the input layout
func (s *Shader) Bind() error {
	if s.compiler == nil {
		return ErrShaderNotGenerated
	}
	return s.compiler.BindProgram(s.program)
}

// Destroy releases the program; the shader can be generated again afterwards
func (s *Shader) Destroy() error {
	if s.compiler == nil {
		return nil
	}
	err := s.compiler.DestroyProgram(s.program)
	s.compiler = nil
	s.program = 0
	s.stages = nil
	s.inputLayout = false
	return err
}
