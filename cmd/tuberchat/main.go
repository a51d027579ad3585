package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "localhost:9999", "tuber socket server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("tuber CLI")
	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type a question, STATS for server stats, or EXIT to leave.")
	fmt.Println("---")

	server := bufio.NewScanner(conn)
	server.Buffer(make([]byte, 0, 64*1024), 64*1024)
	stdin := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !stdin.Scan() {
			return
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		if _, err := fmt.Fprintln(conn, line); err != nil {
			fmt.Fprintf(os.Stderr, "Connection lost: %v\n", err)
			return
		}

		// Responses are terminated by "---"; EXIT gets a single
		// farewell line and the server closes the connection.
		for server.Scan() {
			reply := server.Text()
			fmt.Println(reply)
			if reply == "---" || reply == "Goodbye!" {
				break
			}
		}
		if strings.EqualFold(line, "EXIT") {
			return
		}
		if err := server.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Connection lost: %v\n", err)
			return
		}
	}
}
