package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sonodict/ipc"
	"sonodict/log"
)

// runTestMode drives the controller from stdin, no terminal needed.
// Commands: START, STOP, WAIT_STATUS <status>, WAIT_TEXT, WAIT_EXIT,
// SLEEP <ms>, QUIT. Worker text lines are echoed as "TEXT <...>" so a
// harness can assert on them.
func runTestMode(ctrl *appController) {
	statusCh := make(chan string, 64)
	textCh := make(chan string, 64)
	exitCh := make(chan ExitEvent, 4)

	go pumpEvents(ctrl, func(m ipc.Message) {
		switch m.Type {
		case ipc.TypeStatus:
			fmt.Println("STATUS " + m.Msg)
			select {
			case statusCh <- m.Msg:
			default:
			}
		case ipc.TypeText:
			fmt.Println("TEXT " + m.Text)
			select {
			case textCh <- m.Text:
			default:
			}
		case ipc.TypeError:
			fmt.Println("ERROR " + m.Msg)
		}
	}, func(ex ExitEvent) {
		fmt.Printf("EXIT %d requested=%v\n", ex.Code, ex.Requested)
		select {
		case exitCh <- ex:
		default:
		}
	})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "", "#":
		case "START":
			if err := ctrl.Start(); err != nil {
				fmt.Println("ERROR " + err.Error())
			}
		case "STOP":
			ctrl.Stop()
		case "WAIT_STATUS":
			deadline := time.After(30 * time.Second)
			for done := false; !done; {
				select {
				case s := <-statusCh:
					done = s == arg
				case <-deadline:
					fmt.Println("TIMEOUT waiting for status " + arg)
					os.Exit(1)
				}
			}
			fmt.Println("OK " + arg)
		case "WAIT_TEXT":
			select {
			case <-textCh:
				fmt.Println("OK text")
			case <-time.After(30 * time.Second):
				fmt.Println("TIMEOUT waiting for text")
				os.Exit(1)
			}
		case "WAIT_EXIT":
			select {
			case <-exitCh:
				fmt.Println("OK exit")
			case <-time.After(30 * time.Second):
				fmt.Println("TIMEOUT waiting for exit")
				os.Exit(1)
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			ctrl.Shutdown()
			log.Close()
			os.Exit(0)
		default:
			fmt.Println("ERROR unknown command " + cmd)
		}
	}
	ctrl.Shutdown()
}
