package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/turbokube/shipyard/pkg/testregistry"
)

var testRegistry *testregistry.TestRegistry

func TestMain(m *testing.M) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testRegistry = testregistry.NewTestregistry(ctx)
	if err := testRegistry.Start(); err != nil {
		panic(fmt.Sprintf("failed to start test registry: %s", err))
	}

	code := m.Run()
	os.Exit(code)
}
