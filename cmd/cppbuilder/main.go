// Command cppbuilder installs C/C++ toolchains into an isolated tree and
// exposes them through BUILDER_*_DIR environment variables.
package main

import (
	"os"

	"github.com/goplus/cppbuilder/cmd/cppbuilder/internal"
)

func main() {
	os.Exit(internal.Execute())
}
