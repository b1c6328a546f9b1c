package launcher

import (
	"errors"
	"os/exec"
)

// Validator runs the host interpreter in syntax-check-only mode against the
// target before every debug run. The check is a subprocess so the diagnostic
// output and exit status are exactly what the interpreter reports.
type Validator struct {
	checkCommand []string
}

// NewValidator creates a Validator from an argv prefix such as
// ["luac", "-p"]; the target path is appended as the final argument.
func NewValidator(checkCommand []string) *Validator {
	return &Validator{checkCommand: checkCommand}
}

// Check runs the syntax check against target. It returns the combined output
// of the subprocess and its exit status. A non-nil error means the check
// could not run at all (for example, the interpreter binary is missing), not
// that the target failed validation.
func (v *Validator) Check(target string) (output []byte, code int, err error) {
	if len(v.checkCommand) == 0 {
		return nil, 0, errors.New("no syntax check command configured")
	}

	argv := append(append([]string{}, v.checkCommand...), target)
	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return out, 0, err
	}
	return out, 0, nil
}
