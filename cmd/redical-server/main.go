package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/command"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "redical-server",
		Short:        "An in-memory calendaring engine, driven by a line command protocol",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read commands from stdin, one per line, writing replies to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// serve is a trivial demonstration reader: it is not a real host
// integration (a storage key layout on top of this is a host's job), just
// enough of a line protocol to drive command.Dispatcher from a terminal or
// a test harness. A command line is VERB ARG1 ARG2 ..., split on
// whitespace; no escape sequences are decoded, so an argument cannot
// contain spaces or line breaks.
func serve(in io.Reader, out io.Writer) error {
	store := calendar.NewStore()
	dispatcher := command.NewDispatcher(store, nil)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitCommandLine(line)
		if len(fields) == 0 {
			continue
		}
		verb, args := strings.ToUpper(fields[0]), fields[1:]

		reply, err := dispatcher.Dispatch(context.Background(), verb, args)
		if err != nil {
			fmt.Fprintf(w, "-%s\n", err.Error())
		} else {
			writeReply(w, reply)
		}
		w.Flush()
	}
	return scanner.Err()
}

// splitCommandLine splits every field on whitespace, the content argument
// included; it does not keep a trailing field with spaces intact.
func splitCommandLine(line string) []string {
	return strings.Fields(line)
}

func writeReply(w *bufio.Writer, reply command.Reply) {
	switch reply.Kind {
	case command.ReplyStatus:
		fmt.Fprintf(w, "+%s\n", reply.Status)
	case command.ReplyBulk:
		fmt.Fprintf(w, "$%d\n%s\n", len(reply.Bulk), reply.Bulk)
	case command.ReplyArray:
		fmt.Fprintf(w, "*%d\n", len(reply.Array))
		for _, item := range reply.Array {
			fmt.Fprintf(w, "$%d\n%s\n", len(item), item)
		}
	case command.ReplyInt:
		fmt.Fprintf(w, ":%s\n", strconv.Itoa(reply.Int))
	case command.ReplyBool:
		if reply.Bool {
			fmt.Fprintf(w, ":1\n")
		} else {
			fmt.Fprintf(w, ":0\n")
		}
	case command.ReplyNull:
		fmt.Fprintf(w, "$-1\n")
	}
}
