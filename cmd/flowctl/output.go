package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// envelope is the shape of every --json response.
type envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

// outputJSON writes v as pretty-printed JSON. HTML characters are left
// unescaped so graph text reads the same as in the store.
func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// writeResult prints data as {ok:true,data} in --json mode and calls human
// otherwise.
func writeResult(cmd *cobra.Command, data any, human func(w io.Writer)) error {
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), envelope{OK: true, Data: data})
	}
	human(cmd.OutOrStdout())
	return nil
}
