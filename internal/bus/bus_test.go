package bus

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	sp, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath failed: %v", err)
	}
	if !strings.HasSuffix(sp, "fieldscribe/"+SockName) {
		t.Errorf("SockPath = %q", sp)
	}

	pp, err := PidPath()
	if err != nil {
		t.Fatalf("PidPath failed: %v", err)
	}
	if !strings.HasSuffix(pp, "fieldscribe/"+PidName) {
		t.Errorf("PidPath = %q", pp)
	}
}

func TestSendCommandRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, err := bufio.NewReader(c).ReadString('\n')
				if err != nil || len(line) == 0 {
					return
				}
				fmt.Fprintf(c, "OK %c\n", line[0])
			}(c)
		}
	}()

	for _, cmd := range []byte{CmdStart, CmdStop, CmdStatus} {
		resp, err := SendCommand(cmd)
		if err != nil {
			t.Fatalf("SendCommand(%c) failed: %v", cmd, err)
		}
		if resp != fmt.Sprintf("OK %c\n", cmd) {
			t.Errorf("SendCommand(%c) = %q", cmd, resp)
		}
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	ln1, err := Listen()
	if err != nil {
		t.Fatalf("first Listen failed: %v", err)
	}
	ln1.Close()

	// The stale socket file from the previous run must not block startup.
	ln2, err := Listen()
	if err != nil {
		t.Fatalf("second Listen failed: %v", err)
	}
	ln2.Close()
}

func TestPidFileLifecycle(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	// No pid file: no existing daemon.
	if err := CheckExistingDaemon(); err != nil {
		t.Fatalf("CheckExistingDaemon with no pid file = %v", err)
	}

	if err := CreatePidFile(); err != nil {
		t.Fatalf("CreatePidFile failed: %v", err)
	}

	// Our own live pid is detected as a running daemon.
	if err := CheckExistingDaemon(); err == nil {
		t.Error("CheckExistingDaemon missed the live pid file")
	}

	if err := RemovePidFile(); err != nil {
		t.Fatalf("RemovePidFile failed: %v", err)
	}
	if err := CheckExistingDaemon(); err != nil {
		t.Errorf("CheckExistingDaemon after removal = %v", err)
	}
}
