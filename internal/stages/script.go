package stages

import (
	"fmt"
	"os"
	"time"

	"github.com/dop251/goja"

	"github.com/satchelworks/satchel/internal/bundle"
)

// scriptTimeout bounds one script invocation; the VM is interrupted when
// it elapses.
const scriptTimeout = 5 * time.Second

// scriptTransform runs a user JavaScript file against each body. The
// script must define transform(content, path) returning the new content;
// returning null keeps the body unchanged.
type scriptTransform struct {
	path    string
	program *goja.Program
}

func newScriptTransform(path string) (*scriptTransform, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	program, err := goja.Compile(path, string(src), true)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return &scriptTransform{path: path, program: program}, nil
}

func (s *scriptTransform) Apply(f *bundle.File) error {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	if _, err := vm.RunProgram(s.program); err != nil {
		return fmt.Errorf("script %s: %w", s.path, err)
	}

	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return fmt.Errorf("script %s: no transform(content, path) function", s.path)
	}

	result, err := fn(goja.Undefined(), vm.ToValue(f.Text()), vm.ToValue(f.RelPath))
	if err != nil {
		return fmt.Errorf("script %s: %w", s.path, err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil
	}

	f.Content = []byte(result.String())
	return nil
}
