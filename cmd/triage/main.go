package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			fmt.Fprintln(os.Stderr, "hint: pass --token or set auth.api_token (TRIAGE_API_TOKEN)")
		}
		os.Exit(1)
	}
}
