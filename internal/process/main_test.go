package process

import (
	"os"
	"testing"

	"github.com/goplus/cppbuilder/internal/logging"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}
