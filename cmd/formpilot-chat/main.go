// ABOUTME: Terminal chat client entrypoint: fills a form against a running formpilot server.
// ABOUTME: Loads the form definition from a local file or from the server's schema list.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/formpilot-ai/formpilot/tui"
)

func main() {
	server := flag.String("server", "http://localhost:8000", "formpilot server base URL")
	schemaFile := flag.String("schema", "", "path to a local form definition (markdown)")
	schemaName := flag.String("schema-name", "", "name of a schema served by the server")
	flag.Parse()

	formContext, err := loadForm(*server, *schemaFile, *schemaName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	model := tui.NewModel(tui.NewClient(*server), formContext)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadForm resolves the form definition from a local file, a named server
// schema, or the first schema the server lists.
func loadForm(server, schemaFile, schemaName string) (string, error) {
	if schemaFile != "" {
		content, err := os.ReadFile(schemaFile)
		if err != nil {
			return "", fmt.Errorf("reading schema file: %w", err)
		}
		return string(content), nil
	}

	if schemaName == "" {
		name, err := firstSchemaName(server)
		if err != nil {
			return "", err
		}
		schemaName = name
	}

	resp, err := http.Get(server + "/api/schemas/" + schemaName)
	if err != nil {
		return "", fmt.Errorf("fetching schema: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("schema %q: server returned %d", schemaName, resp.StatusCode)
	}

	var file struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", fmt.Errorf("decoding schema: %w", err)
	}
	return file.Content, nil
}

func firstSchemaName(server string) (string, error) {
	resp, err := http.Get(server + "/api/schemas")
	if err != nil {
		return "", fmt.Errorf("listing schemas: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading schema list: %w", err)
	}

	var list struct {
		Schemas []struct {
			Filename string `json:"filename"`
		} `json:"schemas"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("decoding schema list: %w", err)
	}
	if len(list.Schemas) == 0 {
		return "", fmt.Errorf("server has no schemas; pass -schema <file>")
	}
	return list.Schemas[0].Filename, nil
}
