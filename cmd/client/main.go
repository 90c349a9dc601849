// Interactive client for the query-serving fleet.
// Talks to the gatekeeper, the only node reachable from the open network.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sqlfleet/sqlfleet/common"
)

const HELP_STRING = `Welcome to SQLFleet.
Usages:
* query <sql statement>
* mode
* mode <DIRECT_HIT|RANDOM|CUSTOMIZED>
* bench <count> <sql statement>
* exit
* quit
`

var (
	serverAddr = flag.String("addr", "localhost:5000", "Address of the gatekeeper")
	timeout    = flag.Duration("timeout", 30*time.Second, "Per-request timeout")
)

func gatekeeperURL(path string) string {
	return "http://" + *serverAddr + path
}

func doQuery(query string) error {
	client := common.NewHTTPClient(*timeout)
	status, raw, err := common.PostJSON(client, gatekeeperURL("/query"),
		common.QueryRequest{Query: query}, "")
	if err != nil {
		return err
	}
	fmt.Printf("[%d] %s\n", status, strings.TrimSpace(string(raw)))
	return nil
}

func doGetMode() error {
	client := common.NewHTTPClient(*timeout)
	status, raw, err := common.GetJSON(client, gatekeeperURL("/mode"), "")
	if err != nil {
		return err
	}
	fmt.Printf("[%d] %s\n", status, strings.TrimSpace(string(raw)))
	return nil
}

func doSetMode(mode string) error {
	client := common.NewHTTPClient(*timeout)
	status, raw, err := common.PostJSON(client, gatekeeperURL("/mode"),
		common.ModeRequest{Mode: mode}, "")
	if err != nil {
		return err
	}
	fmt.Printf("[%d] %s\n", status, strings.TrimSpace(string(raw)))
	return nil
}

// doBench fires count copies of the query and tallies which node served
// each one, a quick way to watch a routing policy spread load.
func doBench(count int, query string) error {
	client := common.NewHTTPClient(*timeout)
	served := make(map[string]int)
	for i := 0; i < count; i++ {
		status, raw, err := common.PostJSON(client, gatekeeperURL("/query"),
			common.QueryRequest{Query: query}, "")
		if err != nil {
			return err
		}
		if status != 200 {
			served["error"]++
			continue
		}
		var env common.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.HandledBy == "" {
			served["unknown"]++
			continue
		}
		served[env.HandledBy]++
	}
	fmt.Printf("%d requests:\n", count)
	for node, n := range served {
		fmt.Printf("  %-16s %d\n", node, n)
	}
	return nil
}

func main() {
	flag.Parse()
	fmt.Print(HELP_STRING)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		tokens := strings.SplitN(line, " ", 2)
		var err error
		switch tokens[0] {
		case "":
		case "query":
			if len(tokens) < 2 {
				fmt.Print(HELP_STRING)
				break
			}
			err = doQuery(tokens[1])
		case "mode":
			if len(tokens) < 2 {
				err = doGetMode()
			} else {
				err = doSetMode(strings.TrimSpace(tokens[1]))
			}
		case "bench":
			args := strings.SplitN(line, " ", 3)
			if len(args) < 3 {
				fmt.Print(HELP_STRING)
				break
			}
			var count int
			count, err = strconv.Atoi(args[1])
			if err == nil {
				err = doBench(count, args[2])
			}
		case "exit", "quit":
			return
		default:
			fmt.Print(HELP_STRING)
		}
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
		}
		fmt.Print("> ")
	}
}
