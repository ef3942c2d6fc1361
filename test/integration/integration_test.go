//go:build integration

// Package integration drives a real JVM over JDWP end to end, following the
// scenarios in spec §8. It requires a working Docker daemon; run with
// `go test -tags=integration ./test/integration/...`.
package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	units "github.com/docker/go-units"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwpsession"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
)

// jvmContainerMemory bounds the JDK container so a stuck test run can't eat
// the host; a bare HelloController needs nowhere near this much.
var jvmContainerMemory = units.MustRAMInBytes("512m")

// requireDocker skips the test when no Docker daemon is reachable, mirroring
// the kernel/root capability checks in ehrlich-b-go-ublk's integration
// suite.
func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available on PATH")
	}
}

// helloControllerSource is a minimal class with a line-table-stable method
// at a known source line, so the breakpoint-resolution scenarios in spec §8
// can target a fixed (class, line) pair.
const helloControllerSource = `
public class HelloController {
    public static void main(String[] args) throws Exception {
        while (true) {
            hello();
            Thread.sleep(1000);
        }
    }

    static void hello() {
        String greeting = "hello";
        System.out.println(greeting);
    }
}
`

// startJVM launches an eclipse-temurin container running helloControllerSource
// under a JDWP debug agent that does not suspend at VM start, so
// HelloController is already loaded when a test sets its breakpoints.
func startJVM(ctx context.Context, t *testing.T) (host string, port int, cleanup func()) {
	t.Helper()

	cmd := fmt.Sprintf(`mkdir -p /work && cat > /work/HelloController.java <<'EOF'%sEOF
cd /work && javac HelloController.java && java -agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address=*:5005 HelloController`, helloControllerSource)

	req := testcontainers.ContainerRequest{
		Image:        "eclipse-temurin:21-jdk",
		ExposedPorts: []string{"5005/tcp"},
		Cmd:          []string{"sh", "-c", cmd},
		WaitingFor:   wait.ForLog("Listening for transport dt_socket").WithStartupTimeout(60 * time.Second),
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Memory = jvmContainerMemory
		},
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting JVM container: %v", err)
	}

	mappedHost, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mappedPort, err := ctr.MappedPort(ctx, "5005/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}

	return mappedHost, mappedPort.Int(), func() {
		_ = ctr.Terminate(ctx)
	}
}

func TestAttachAndVersion(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	host, port, cleanup := startJVM(ctx, t)
	defer cleanup()

	sess, err := jdwpsession.Attach(ctx, host, uint16(port), jdwpsession.Options{
		Dialer:      jdwptransport.DefaultDialer,
		DialTimeout: 10 * time.Second,
		Log:         jdwplog.Nop(),
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer sess.Disconnect(ctx)

	if !strings.Contains(sess.JVMVersion, "JDWP") {
		t.Errorf("jvm_version = %q, want it to contain JDWP", sess.JVMVersion)
	}
	if sess.IDSizesInfo.ObjectIDSize != 8 {
		t.Errorf("objectID size = %d, want 8 on a 64-bit JVM", sess.IDSizesInfo.ObjectIDSize)
	}
}

func TestSetResolvedBreakpointAndDistinctIDs(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	host, port, cleanup := startJVM(ctx, t)
	defer cleanup()

	sess, err := jdwpsession.Attach(ctx, host, uint16(port), jdwpsession.Options{Dialer: jdwptransport.DefaultDialer, Log: jdwplog.Nop()})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer sess.Disconnect(ctx)

	// javac emits a source line for the println call inside hello(); class
	// line numbers are stable for this fixed source, so this test pins the
	// literal line hello()'s body lands on.
	const line = 11

	first, err := sess.SetBreakpoint(ctx, "HelloController", line)
	if err != nil {
		t.Fatalf("set_breakpoint: %v", err)
	}
	if first.State != jdwpsession.StateResolved {
		t.Fatalf("expected resolved breakpoint, got %v", first.State)
	}
	if first.RequestID == 0 {
		t.Error("expected a non-zero request id")
	}

	second, err := sess.SetBreakpoint(ctx, "HelloController", line)
	if err != nil {
		t.Fatalf("second set_breakpoint: %v", err)
	}
	if second.SymbolicID == first.SymbolicID {
		t.Error("expected a distinct symbolic breakpoint id")
	}
	if second.RequestID == first.RequestID {
		t.Error("expected a distinct JDWP request id")
	}
}

func TestDisconnectClearsBreakpoints(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	host, port, cleanup := startJVM(ctx, t)
	defer cleanup()

	sess, err := jdwpsession.Attach(ctx, host, uint16(port), jdwpsession.Options{Dialer: jdwptransport.DefaultDialer, Log: jdwplog.Nop()})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := sess.SetBreakpoint(ctx, "HelloController", 11); err != nil {
		t.Fatalf("set_breakpoint 1: %v", err)
	}
	if _, err := sess.SetBreakpoint(ctx, "HelloController", 11); err != nil {
		t.Fatalf("set_breakpoint 2: %v", err)
	}

	if err := sess.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// Per spec §8 scenario 6, enumerating event requests is out of scope for
	// JDWP; the cleanup property is instead checked by the absence of any
	// further breakpoint hits, which this fixed-pacing integration harness
	// does not assert on directly. A subsequent attach to the same JVM is
	// still expected to succeed.
	if _, err := jdwpsession.Attach(ctx, host, uint16(port), jdwpsession.Options{Dialer: jdwptransport.DefaultDialer, Log: jdwplog.Nop()}); err != nil {
		t.Fatalf("re-attach after disconnect: %v", err)
	}
}
