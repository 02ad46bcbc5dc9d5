package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// playersCmd lists registered players straight from the sqlite file, for
// use when the server is down or the HTTP surface is unreachable.
func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "frenzy.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := db.QueryContext(context.Background(),
		`SELECT address, username, bait, fishing_rods, last_seen
		   FROM players ORDER BY last_seen DESC LIMIT ?`, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var address, username, lastSeen string
		var bait, rods int64
		if err := rows.Scan(&address, &username, &bait, &rods, &lastSeen); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("%s  %-20s  bait=%-5d rods=%-3d  %s\n", address, username, bait, rods, lastSeen)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

// journalCmd decodes economy journal files to stdout, newest file first
// unless a specific path is given.
func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	filePath := fs.String("file", "", "journal file path (optional; defaults to newest)")
	address := fs.String("address", "", "filter by address")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*filePath)
	if path == "" {
		var err error
		path, err = newestJournal(filepath.Join(*dataDir, "journal"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "find journal:", err)
			os.Exit(1)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zstd:", err)
		os.Exit(1)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if *address != "" {
			var probe struct {
				Address string `json:"address"`
			}
			if err := json.Unmarshal(line, &probe); err != nil || probe.Address != *address {
				continue
			}
		}
		fmt.Println(string(line))
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
}

func newestJournal(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no journal files in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
