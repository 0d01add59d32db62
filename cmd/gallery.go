package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database/postgres"
	"github.com/facewatch/facewatch/internal/detect"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the subject gallery",
}

var galleryWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Precompute reference embeddings for all subjects",
	Long: `Warm computes a face embedding from every subject's reference photo and
caches it in the database, so daemon startup does not have to run the
detector over the whole gallery.

Examples:
  # Compute missing embeddings
  facewatch gallery warm

  # Recompute everything
  facewatch gallery warm --force`,
	RunE: runGalleryWarm,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gallery subjects",
	RunE:  runGalleryList,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryWarmCmd)
	galleryCmd.AddCommand(galleryListCmd)

	galleryWarmCmd.Flags().Bool("force", false, "Recompute embeddings that already exist")
}

func runGalleryWarm(cmd *cobra.Command, args []string) error {
	force := mustGetBool(cmd, "force")

	cfg := config.Load()
	pool, err := initPostgres(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	subjects := postgres.NewSubjectRepository(pool)
	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Dim)

	all, err := subjects.GetAllWithImagery(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subjects: %w", err)
	}
	if len(all) == 0 {
		fmt.Println("No subjects with reference imagery found.")
		return nil
	}

	bar := progressbar.NewOptions(len(all),
		progressbar.OptionSetDescription("Warming gallery"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("subjects"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var warmed, skipped, failed int
	for _, sub := range all {
		if !force && len(sub.RefEmbedding) == cfg.Detector.Dim {
			skipped++
			bar.Add(1)
			continue
		}

		faces, err := detector.DetectFaces(ctx, sub.Image)
		if err != nil {
			fmt.Printf("\n  %s: detection failed: %v\n", sub.FullName, err)
			failed++
			bar.Add(1)
			continue
		}
		if len(faces) == 0 {
			fmt.Printf("\n  %s: no face in reference photo\n", sub.FullName)
			failed++
			bar.Add(1)
			continue
		}

		if err := subjects.SaveRefEmbedding(ctx, sub.ID, faces[0].Embedding); err != nil {
			fmt.Printf("\n  %s: failed to save embedding: %v\n", sub.FullName, err)
			failed++
			bar.Add(1)
			continue
		}
		warmed++
		bar.Add(1)
	}

	fmt.Println("\n\nWarm complete!")
	fmt.Printf("  Warmed:  %d\n", warmed)
	fmt.Printf("  Skipped: %d (already warm)\n", skipped)
	if failed > 0 {
		fmt.Printf("  Failed:  %d\n", failed)
	}
	return nil
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := initPostgres(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	subjects := postgres.NewSubjectRepository(pool)
	all, err := subjects.GetAllWithImagery(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load subjects: %w", err)
	}

	if len(all) == 0 {
		fmt.Println("No subjects with reference imagery found.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-10s %s\n", "ID", "NAME", "WARMED", "ADDED")
	for _, sub := range all {
		warmed := "no"
		if len(sub.RefEmbedding) == cfg.Detector.Dim {
			warmed = "yes"
		}
		fmt.Printf("%-6d %-30s %-10s %s\n",
			sub.ID, sub.FullName, warmed, sub.CreatedAt.Format("2006-01-02"))
	}
	fmt.Printf("\n%d subjects\n", len(all))
	return nil
}
