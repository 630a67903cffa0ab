package cairom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairo-m/cairom/internal/cairom/diag"
)

func TestDiagnosticsControllerPublishesChangedResults(t *testing.T) {
	compute := func(moduleID string) []diag.Diagnostic {
		return []diag.Diagnostic{{Code: diag.CodeUndefinedName, Message: "x undefined"}}
	}
	c := NewDiagnosticsController(2, compute)
	defer c.Shutdown()

	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 1})

	select {
	case resp := <-c.Responses():
		assert.Equal(t, "main.cm", resp.ModuleID)
		assert.NotEmpty(t, resp.RequestID)
		require.Len(t, resp.Diagnostics, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for diagnostics response")
	}
}

func TestDiagnosticsControllerSuppressesUnchangedResults(t *testing.T) {
	compute := func(moduleID string) []diag.Diagnostic {
		return []diag.Diagnostic{{Code: diag.CodeUndefinedName, Message: "x undefined"}}
	}
	c := NewDiagnosticsController(1, compute)
	defer c.Shutdown()

	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 1})
	<-c.Responses()

	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 2})

	select {
	case resp := <-c.Responses():
		t.Fatalf("unexpected republish of unchanged diagnostics: %+v", resp)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDiagnosticsControllerSuppressesStaleResponses(t *testing.T) {
	gate := make(chan struct{})
	compute := func(moduleID string) []diag.Diagnostic {
		<-gate
		return []diag.Diagnostic{{Code: diag.CodeUndefinedName, Message: "stale"}}
	}
	c := NewDiagnosticsController(1, compute)
	defer c.Shutdown()

	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 1})
	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 2})
	close(gate)

	select {
	case resp := <-c.Responses():
		assert.Equal(t, int64(2), resp.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for diagnostics response")
	}
}

func TestDiagnosticsControllerRecoversFromComputePanic(t *testing.T) {
	compute := func(moduleID string) []diag.Diagnostic {
		panic("boom")
	}
	c := NewDiagnosticsController(1, compute)
	defer c.Shutdown()

	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 1})

	select {
	case resp := <-c.Responses():
		t.Fatalf("unexpected response from panicking compute: %+v", resp)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDiagnosticsControllerSubmitAfterShutdownIsNoop(t *testing.T) {
	c := NewDiagnosticsController(1, func(string) []diag.Diagnostic { return nil })
	c.Shutdown()
	c.Submit(DiagnosticsRequest{ModuleID: "main.cm", Version: 1})

	select {
	case resp := <-c.Responses():
		t.Fatalf("unexpected response after shutdown: %+v", resp)
	case <-time.After(100 * time.Millisecond):
	}
}
