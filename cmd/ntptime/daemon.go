package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/sevlyar/go-daemon"
)

const daemonName = "ntptimed"

var daemonCtx = &daemon.Context{
	PidFileName: fmt.Sprintf("/var/run/%s.pid", daemonName),
	PidFilePerm: 0644,
	LogFileName: fmt.Sprintf("/var/log/%s.log", daemonName),
	LogFilePerm: 0640,
	WorkDir:     "./",
	Umask:       027,
	Args:        append([]string{daemonName}, os.Args[1:]...),
}

func killDaemon() {
	d, err := daemonCtx.Search()
	if err != nil {
		log.Fatalf("Error finding daemon: %v", err)
	}

	err = syscall.Kill(d.Pid, syscall.SIGTERM)
	if err != nil {
		log.Fatalf("Couldn't stop %s: %v", daemonName, err)
	}
}

// becomeDaemon forks the background process. It reports true in the child,
// which should carry on as the daemon. Starting a second daemon stops the
// running one instead.
func becomeDaemon() bool {
	d, err := daemonCtx.Reborn()
	if err != nil {
		if errors.Is(err, daemon.ErrWouldBlock) {
			killDaemon()
			fmt.Printf("Successfully stopped %s.\n", daemonName)
			return false
		}
		log.Fatal("Unable to run: ", err)
	}
	if d != nil {
		fmt.Printf("Daemon process (%s, %d) started successfully.\n", daemonName, d.Pid)
		return false
	}

	log.Print("- - - - - - - - - - - - - - -")
	log.Print("daemon started ", os.Args)
	return true
}
