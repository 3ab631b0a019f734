package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fluxgen/internal/domain"
	"fluxgen/internal/infra"
	"fluxgen/internal/providers/flux"
	"fluxgen/internal/storage"
)

type generateOptions struct {
	prompt       string
	width        int
	height       int
	model        string
	output       string
	baseURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one image and save it locally",
		Long: `Submits a prompt to FLUX, waits for the result and writes the image to
--output. An existing file is never overwritten: a timestamp suffix is added
instead. Without --prompt the prompt is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "image prompt (read from stdin when empty)")
	cmd.Flags().IntVar(&opts.width, "width", domain.DefaultWidth, "image width, rounded to a multiple of 32")
	cmd.Flags().IntVar(&opts.height, "height", domain.DefaultHeight, "image height, rounded to a multiple of 32")
	cmd.Flags().StringVarP(&opts.model, "model", "m", domain.DefaultModel, "FLUX model: "+strings.Join(domain.AllowedModels, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "generated_image.jpg", "output file")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", flux.DefaultBaseURL, "FLUX API base URL")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", flux.DefaultPollInterval, "delay between result polls")
	cmd.Flags().DurationVar(&opts.pollTimeout, "poll-timeout", 5*time.Minute, "give up polling after this long (0 waits forever)")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	ctx := cmd.Context()
	logger := infra.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	apiKey := strings.TrimSpace(os.Getenv("BFL_API_KEY"))
	if apiKey == "" {
		return errors.New("BFL_API_KEY is not set")
	}

	prompt := opts.prompt
	if strings.TrimSpace(prompt) == "" {
		var err error
		if prompt, err = readPrompt(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	req := domain.GenerationRequest{Prompt: prompt, Width: opts.width, Height: opts.height, Model: opts.model}.WithDefaults()
	if err := req.Validate(); err != nil {
		return err
	}

	client, err := flux.NewClient(flux.Options{
		APIKey:       apiKey,
		BaseURL:      opts.baseURL,
		Logger:       &logger,
		PollInterval: opts.pollInterval,
		PollTimeout:  opts.pollTimeout,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Generating image...")
	asset, err := client.Generate(ctx, flux.Request{Model: req.Model, Prompt: req.Prompt, Width: req.Width, Height: req.Height})
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}

	store, err := storage.NewFileStore(filepath.Dir(opts.output))
	if err != nil {
		return err
	}
	path, err := store.Persist(ctx, filepath.Base(opts.output), asset.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Image saved as: %s\n", path)
	return nil
}

func readPrompt(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Enter your image prompt: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
