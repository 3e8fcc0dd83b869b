package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// output writes v as JSON when --json or --jq is set, and calls text otherwise.
func output(c *cli.Context, v interface{}, text func()) error {
	if filter := c.String("jq"); filter != "" {
		results, err := runJQ(filter, v)
		if err != nil {
			return err
		}
		return writeJQResults(os.Stdout, results)
	}
	if c.Bool("json") {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	text()
	return nil
}

// runJQ applies filter to the JSON form of v and collects every result.
func runJQ(filter string, v interface{}) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only understands plain JSON values
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var results []interface{}
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return nil, fmt.Errorf("jq filter %q: %w", filter, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// writeJQResults prints one result per line. Strings are printed raw.
func writeJQResults(w io.Writer, results []interface{}) error {
	for _, result := range results {
		if s, ok := result.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func separator() {
	fmt.Println(strings.Repeat("━", 60))
}
