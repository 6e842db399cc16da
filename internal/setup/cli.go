package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	ConfigPath string // overrides the platform client config path
	reader     *bufio.Reader
	out        io.Writer
}

// NewCLI creates a setup CLI reading answers from in and printing to out.
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "client", "claude-desktop":
		return c.configure(args[1:])
	case "status":
		return c.showStatus()
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		c.printf("Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown setup command %q", args[0])
	}
}

func (c *CLI) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *CLI) showHelp() {
	c.printf(`NGS Reimbursement MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  client     Register the lite server with the desktop MCP client
  status     Show current setup status
  validate   Validate current configuration

Options for client:
  --binary, -b <path>     Server binary (defaults to this executable)
  --data-dir, -d <path>   Data directory for history and exports
  --catalog, -c <path>    Catalog file to load instead of the built-in one
  --yes, -y               Do not ask for confirmation
`)
}

func (c *CLI) configure(args []string) error {
	opts := Options{ConfigPath: c.ConfigPath}

	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "--binary", "-b":
			opts.BinaryPath = next()
		case "--data-dir", "-d":
			opts.DataDir = next()
		case "--catalog", "-c":
			opts.CatalogFile = next()
		case "--yes", "-y", "--auto":
			opts.AutoConfirm = true
		default:
			return fmt.Errorf("unknown option %q", args[i])
		}
	}

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}
	c.printf("Config file:    %s\n", configPath)
	c.printf("Server binary:  %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		c.printf("Data directory: %s\n", opts.DataDir)
	}

	if !opts.AutoConfirm && !c.confirm("Proceed with configuration? [Y/n]: ", true) {
		c.printf("Configuration cancelled.\n")
		return nil
	}

	opts.ConfigPath = configPath
	if _, err := Configure(opts); err != nil {
		return fmt.Errorf("failed to configure client: %w", err)
	}
	if err := EnsureDataDir(opts.DataDir); err != nil {
		c.printf("Warning: %v\n", err)
	}

	c.printf("\nConfigured %q. Restart the client to load it.\n", ServerName)
	return nil
}

func (c *CLI) confirm(prompt string, def bool) bool {
	c.printf("%s", prompt)
	response, _ := c.reader.ReadString('\n')
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (c *CLI) showStatus() error {
	status, err := GetStatus(c.ConfigPath)
	if err != nil {
		return err
	}

	c.printf("Client config:  %s\n", status.ConfigPath)
	if status.ServerConfigured {
		c.printf("Server:         %s\n", status.ServerPath)
	} else {
		c.printf("Server:         not configured\n")
	}
	c.printf("Data directory: %s\n", status.DataDir)
	if status.HistoryDBPresent {
		c.printf("History DB:     present\n")
	} else {
		c.printf("History DB:     not created yet\n")
	}
	for _, issue := range status.Issues {
		c.printf("  ! %s\n", issue)
	}
	for _, warning := range status.Warnings {
		c.printf("  - %s\n", warning)
	}
	return nil
}

func (c *CLI) validate() error {
	status, err := GetStatus(c.ConfigPath)
	if err != nil {
		return err
	}
	if status.Valid() {
		c.printf("Configuration is valid.\n")
		return nil
	}
	for _, issue := range status.Issues {
		c.printf("  - %s\n", issue)
	}
	return fmt.Errorf("configuration has %d issue(s)", len(status.Issues))
}
