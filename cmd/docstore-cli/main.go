// Command docstore-cli is a small client for a running docstore service,
// useful for poking at a deployment by hand.
//
// Usage:
//
//	docstore-cli -url http://localhost:8000 save-pdf doc1 report.pdf
//	docstore-cli get-pdf doc1 out.pdf
//	docstore-cli save-image doc1 3 page3.jpg
//	docstore-cli get-image doc1 3 out.jpg
//	docstore-cli delete doc1
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"docstore/internal/client"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func run() error {
	baseURL := flag.String("url", getenv("DOCSTORE_URL", "http://localhost:8000"), "base URL of the docstore service")
	authUser := flag.String("auth-user", getenv("DOCSTORE_AUTH_USER", ""), "Basic auth username")
	authPass := flag.String("auth-pass", getenv("DOCSTORE_AUTH_PASS", ""), "Basic auth password")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("missing command (save-pdf, get-pdf, save-image, get-image, delete)")
	}

	opts := []client.Option{}
	if *authUser != "" {
		opts = append(opts, client.WithBasicAuth(*authUser, *authPass))
	}
	c := client.New(*baseURL, opts...)
	ctx := context.Background()

	switch cmd := args[0]; cmd {
	case "save-pdf":
		if len(args) != 3 {
			return fmt.Errorf("usage: save-pdf <doc-id> <pdf-file>")
		}
		content, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		path, err := c.SavePDF(ctx, args[1], content)
		if err != nil {
			return err
		}
		slog.Info("PDF saved", "doc_id", args[1], "path", path)

	case "get-pdf":
		if len(args) != 3 {
			return fmt.Errorf("usage: get-pdf <doc-id> <out-file>")
		}
		content, err := c.GetPDF(ctx, args[1])
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[2], content, 0o644); err != nil {
			return err
		}
		slog.Info("PDF fetched", "doc_id", args[1], "out", args[2], "size", len(content))

	case "save-image":
		if len(args) != 4 {
			return fmt.Errorf("usage: save-image <doc-id> <page> <jpg-file>")
		}
		page, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("page must be an integer: %w", err)
		}
		content, err := os.ReadFile(args[3])
		if err != nil {
			return err
		}
		path, err := c.SaveImage(ctx, args[1], page, content)
		if err != nil {
			return err
		}
		slog.Info("Image saved", "doc_id", args[1], "page", page, "path", path)

	case "get-image":
		if len(args) != 4 {
			return fmt.Errorf("usage: get-image <doc-id> <page> <out-file>")
		}
		page, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("page must be an integer: %w", err)
		}
		content, err := c.GetImage(ctx, args[1], page)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[3], content, 0o644); err != nil {
			return err
		}
		slog.Info("Image fetched", "doc_id", args[1], "page", page, "out", args[3], "size", len(content))

	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: delete <doc-id>")
		}
		if err := c.DeleteDocument(ctx, args[1]); err != nil {
			return err
		}
		slog.Info("Document deleted", "doc_id", args[1])

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("docstore-cli failed", "error", err)
		os.Exit(1)
	}
}
