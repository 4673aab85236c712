package host

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/blowhai/compiler"
)

func compile(t *testing.T, source string) []byte {
	t.Helper()
	module, err := compiler.Compile(source, compiler.DefaultOptions())
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	return module
}

func TestRun(t *testing.T) {
	tests := []struct {
		source string
		want   int32
	}{
		{"42;", 42},
		{"(3 + 4);", 7},
		{"(3 * (4 - 1));", 9},
		{"var x = 5; var y = x * 2; (y - 1);", 9},
		{"-7 / 2;", -3},
		{"2147483647 + 1;", -2147483648},
		{"", 0},
	}

	ctx := context.Background()
	for _, tc := range tests {
		got, err := Run(ctx, compile(t, tc.source), compiler.DefaultExportName)
		if err != nil {
			t.Errorf("%q: %v", tc.source, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %d, want %d", tc.source, got, tc.want)
		}
	}
}

func TestRunTraps(t *testing.T) {
	r := NewRuntime(context.Background())
	defer r.Close(context.Background())

	for _, src := range []string{"1 / 0;", "var z; 5 / z;", "-2147483648 / -1;"} {
		_, err := r.Run(context.Background(), compile(t, src), compiler.DefaultExportName)
		var trap *TrapError
		if !errors.As(err, &trap) {
			t.Errorf("%q: expected TrapError, got %v", src, err)
		}
	}
}

func TestRunMissingExport(t *testing.T) {
	_, err := Run(context.Background(), compile(t, "1;"), "main")
	if err == nil || !strings.Contains(err.Error(), `"main"`) {
		t.Errorf("expected missing export error, got %v", err)
	}
}

func TestRunInvalidModule(t *testing.T) {
	_, err := Run(context.Background(), []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0, 0, 0}, "_start")
	if err == nil {
		t.Fatal("expected error for bad version")
	}
}

func TestRuntimeReuse(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	module := compile(t, "(10 - 3);")
	for i := 0; i < 3; i++ {
		got, err := r.Run(ctx, module, compiler.DefaultExportName)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if got != 7 {
			t.Fatalf("run %d: got %d, want 7", i, got)
		}
	}
	if err := r.Validate(ctx, module); err != nil {
		t.Errorf("validate: %v", err)
	}
}
