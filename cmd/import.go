package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
)

var (
	importDir     string
	importCountry string
	importMonth   string
)

// extSourceTypes maps file extensions to evidence source types. Anything
// unrecognized is treated as plain text.
var extSourceTypes = map[string]model.SourceType{
	".pdf":  model.SourceTypePDF,
	".eml":  model.SourceTypeEmail,
	".msg":  model.SourceTypeEmail,
	".png":  model.SourceTypeImage,
	".jpg":  model.SourceTypeImage,
	".jpeg": model.SourceTypeImage,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import evidence files for a country and month",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := validateBatchKey(importCountry, importMonth); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := os.ReadDir(importDir)
		if err != nil {
			return eris.Wrapf(err, "read import dir %s", importDir)
		}

		imported := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(importDir, entry.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}

			ext := strings.ToLower(filepath.Ext(entry.Name()))
			srcType, ok := extSourceTypes[ext]
			if !ok {
				srcType = model.SourceTypeText
			}

			ev := model.Evidence{
				ID:         uuid.New().String(),
				Text:       string(raw),
				SourceType: srcType,
				Filename:   entry.Name(),
				Country:    importCountry,
				Month:      importMonth,
				CreatedAt:  time.Now().UTC(),
			}
			if err := st.InsertEvidence(ctx, ev); err != nil {
				return err
			}
			imported++
		}

		zap.L().Info("evidence imported",
			zap.String("dir", importDir),
			zap.String("country", importCountry),
			zap.String("month", importMonth),
			zap.Int("files", imported),
		)
		return printJSON(map[string]any{"imported": imported})
	},
}

// validateBatchKey checks the country code and YYYY-MM month format.
func validateBatchKey(country, month string) error {
	if len(country) != 2 || strings.ToLower(country) != country {
		return eris.Errorf("country must be a lowercase two-letter code, got %q", country)
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return eris.Errorf("month must be YYYY-MM, got %q", month)
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory of evidence files (required)")
	importCmd.Flags().StringVar(&importCountry, "country", "", "two-letter country code (required)")
	importCmd.Flags().StringVar(&importMonth, "month", "", "batch month YYYY-MM (required)")
	_ = importCmd.MarkFlagRequired("dir")
	_ = importCmd.MarkFlagRequired("country")
	_ = importCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(importCmd)
}
