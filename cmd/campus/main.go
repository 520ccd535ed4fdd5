package main

import (
	"errors"
	"fmt"
	"os"

	tool "github.com/campusmarket/accountkit/internal/tools/campus"
	"github.com/campusmarket/accountkit/internal/tools/common"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		var exit *common.ExitError
		if !errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(common.ExitCode(err))
	}
}
