package os

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/beldeveloper/deploy-lego/model"
)

// NewOS creates a new instance of the OS module.
func NewOS() OS {
	return OS{}
}

// OS implements a module that interacts with the operating system.
type OS struct {
}

// RunCmd executes the system command and returns the system output.
func (os OS) RunCmd(ctx context.Context, cmd model.Cmd) (string, error) {
	osCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	osCmd.Dir = cmd.Dir
	osCmd.Env = cmd.Env
	if cmd.Log {
		log.Printf("Exec OS command: %s %v; dir %s\n", cmd.Name, cmd.Args, cmd.Dir)
	}
	res, err := osCmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return string(res), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return string(res), err
	}
	return string(res), nil
}
