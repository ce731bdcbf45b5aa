package fake

import (
	"context"
	"errors"
	"testing"

	"pvefleet/internal/transport"
)

func TestTransport_ScriptedOutput(t *testing.T) {
	tr := NewTransport()
	tr.Script("pve1", "pct list", Response{Stdout: "VMID Status Name\n105 running web01\n"})

	out, err := transport.Collect(tr.Execute(context.Background(), transport.Target{Name: "pve1"}, "pct list"))
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", out.ExitCode)
	}
	if out.Stdout.Len() == 0 {
		t.Error("scripted stdout missing")
	}
	if len(tr.Calls("Execute")) != 1 {
		t.Errorf("Execute calls = %d, want 1", len(tr.Calls("Execute")))
	}
}

func TestTransport_PrefixMatchAndDefault(t *testing.T) {
	tr := NewTransport()
	tr.ScriptPrefix("pve1", "cat ", Response{Stdout: "hostname: web01\n"})

	out, err := transport.Collect(tr.Execute(context.Background(), transport.Target{Name: "pve1"}, "cat /etc/pve/lxc/105.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout.String() != "hostname: web01\n" {
		t.Errorf("stdout = %q", out.Stdout.String())
	}

	// Unscripted commands succeed with empty output.
	out, err = transport.Collect(tr.Execute(context.Background(), transport.Target{Name: "pve1"}, "true"))
	if err != nil || out.ExitCode != 0 || out.Stdout.Len() != 0 {
		t.Errorf("default response: out=%+v err=%v", out, err)
	}
}

func TestTransport_DownHost(t *testing.T) {
	tr := NewTransport()
	cause := errors.New("dial tcp: connection refused")
	tr.SetDown("pve2", cause)

	_, err := transport.Collect(tr.Execute(context.Background(), transport.Target{Name: "pve2"}, "true"))
	if !transport.IsConnError(err) {
		t.Fatalf("Execute error %v is not a ConnError", err)
	}
	if err := tr.TestConnectivity(context.Background(), transport.Target{Name: "pve2"}); !errors.Is(err, cause) {
		t.Errorf("TestConnectivity error %v does not wrap cause", err)
	}

	tr.SetDown("pve2", nil)
	if err := tr.TestConnectivity(context.Background(), transport.Target{Name: "pve2"}); err != nil {
		t.Errorf("restored host still down: %v", err)
	}
}
