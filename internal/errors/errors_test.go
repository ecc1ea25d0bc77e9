package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ProjectError Tests
// -----------------------------------------------------------------------------

func TestProjectError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ProjectError
		want string
	}{
		{
			name: "message only",
			err:  NewProjectError("cannot stop", nil),
			want: "project error: cannot stop",
		},
		{
			name: "with project and cause",
			err:  NewProjectError("cannot send input", ErrNotRunning).WithProjectID("api"),
			want: "project error [project=api]: cannot send input: project not running",
		},
		{
			name: "with state",
			err:  NewProjectError("cannot start", ErrAlreadyRunning).WithProjectID("api").WithState("restarting"),
			want: "project error [project=api, state=restarting]: cannot start: project already running",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectError_Is(t *testing.T) {
	err := NewProjectError("cannot send input", ErrNotRunning)

	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is(err, ErrNotRunning) = false, want true")
	}
	if errors.Is(err, ErrAlreadyRunning) {
		t.Error("errors.Is(err, ErrAlreadyRunning) = true, want false")
	}

	var target *ProjectError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &target) {
		t.Fatal("errors.As should find the ProjectError through wrapping")
	}
	if target != err {
		t.Error("errors.As returned a different ProjectError")
	}
}

// -----------------------------------------------------------------------------
// LaunchError Tests
// -----------------------------------------------------------------------------

func TestLaunchError(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := NewLaunchError("working directory is invalid", cause).
		WithProjectID("web").
		WithPath("/srv/web").
		WithShell("/bin/sh")

	want := "launch error [project=web, path=/srv/web, shell=/bin/sh]: working directory is invalid: no such file or directory"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrLaunchFailed) {
		t.Error("LaunchError should match ErrLaunchFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("LaunchError should match its cause")
	}
	if !IsUserFacing(err) {
		t.Error("IsUserFacing() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// IOError Tests
// -----------------------------------------------------------------------------

func TestIOError(t *testing.T) {
	err := NewIOError("export failed", errors.New("disk full")).WithPath("/tmp/out.log")

	if got, want := err.Error(), "io error [path=/tmp/out.log]: export failed: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrIO) {
		t.Error("IOError should match ErrIO")
	}
	if errors.Is(err, ErrLaunchFailed) {
		t.Error("IOError should not match ErrLaunchFailed")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	t.Run("project resource matches ErrProjectNotFound", func(t *testing.T) {
		err := NewNotFoundError("project", "api")
		if got, want := err.Error(), "project 'api' not found"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if !errors.Is(err, ErrProjectNotFound) {
			t.Error("errors.Is(err, ErrProjectNotFound) = false, want true")
		}
	})

	t.Run("other resource does not", func(t *testing.T) {
		err := NewNotFoundError("directory", "/nope")
		if errors.Is(err, ErrProjectNotFound) {
			t.Error("directory NotFoundError should not match ErrProjectNotFound")
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Error("errors.As should find NotFoundError")
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("stat failed")
		err := NewNotFoundError("directory", "/nope").WithCause(cause)
		if !errors.Is(err, cause) {
			t.Error("NotFoundError should match its cause")
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{"message only", NewValidationError("bad"), "validation error: bad"},
		{"with field", NewValidationError("must not be empty").WithField("path"), "validation error: path: must not be empty"},
		{"with value", NewValidationError("must be positive").WithField("restart_delay").WithValue(-1), "validation error: restart_delay: must be positive (got: -1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("ValidationError should match ErrInvalidInput")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"wrapped sentinel", fmt.Errorf("start: %w", ErrAlreadyRunning), true},
		{"typed error", NewNotFoundError("project", "x"), true},
		{"io sentinel alone", ErrIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
	if got := GetSeverity(errors.New("x")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
	if got := GetSeverity(NewNotFoundError("project", "x")); got != SeverityWarning {
		t.Errorf("GetSeverity(NotFound) = %v, want %v", got, SeverityWarning)
	}
	if got := GetSeverity(NewProjectError("x", nil).WithSeverity(SeverityCritical)); got != SeverityCritical {
		t.Errorf("GetSeverity(critical) = %v, want %v", got, SeverityCritical)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrNotRunning, "send input to %s", "api")
	if got, want := err.Error(), "send input to api: project not running"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Error("wrapped error should match sentinel")
	}
}
