package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	fimfic2cover "github.com/zodiacalcomet/fimfic2cover"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})

	var (
		debug          bool
		configPath     string
		imageDir       string
		titleFont      string
		titleFontSize  float64
		authorFont     string
		authorFontSize float64
		wait           int
		converterExe   string
		converterDir   string
		converterExtra string
		converterFile  string
	)

	exitCode := 0
	root := &cobra.Command{
		Use:           "fimfic2cover [flags] <story>",
		Short:         "Wrapper around fimfic2epub's CLI to handle stories without a cover",
		Args:          cobra.ExactArgs(1),
		Version:       fimfic2cover.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(logrus.DebugLevel)
			}

			explicitConfig := configPath != ""
			if !explicitConfig {
				configPath = fimfic2cover.DefaultSettingsPath()
			} else if _, err := os.Stat(configPath); err != nil {
				return fmt.Errorf("settings file: %w", err)
			}
			settings, err := fimfic2cover.LoadSettings(configPath)
			if err != nil {
				return err
			}

			// Settings fill in flags the user didn't give.
			flags := cmd.Flags()
			if !flags.Changed("image-dir") && settings.ImageDir != "" {
				imageDir = settings.ImageDir
			}
			if !flags.Changed("title-font") && settings.TitleFont != "" {
				titleFont = settings.TitleFont
			}
			if !flags.Changed("title-font-size") && settings.TitleFontSize > 0 {
				titleFontSize = settings.TitleFontSize
			}
			if !flags.Changed("author-font") && settings.AuthorFont != "" {
				authorFont = settings.AuthorFont
			}
			if !flags.Changed("author-font-size") && settings.AuthorFontSize > 0 {
				authorFontSize = settings.AuthorFontSize
			}
			if !flags.Changed("wait") && settings.Wait > 0 {
				wait = settings.Wait
			}
			if !flags.Changed("converter-executable") && settings.ConverterExecutable != "" {
				converterExe = settings.ConverterExecutable
			}
			if !flags.Changed("converter-dir") && settings.ConverterDir != "" {
				converterDir = settings.ConverterDir
			}
			if !flags.Changed("converter-extra-flags") && settings.ConverterExtraFlags != "" {
				converterExtra = settings.ConverterExtraFlags
			}

			opts := fimfic2cover.Options{
				StoryRef: args[0],
				ImageDir: imageDir,
				Fonts: fimfic2cover.FontConfig{
					TitlePath:  titleFont,
					TitleSize:  titleFontSize,
					AuthorPath: authorFont,
					AuthorSize: authorFontSize,
				},
				Wait:                time.Duration(wait) * time.Second,
				ConverterExecutable: converterExe,
				ConverterDir:        converterDir,
				ConverterExtraFlags: converterExtra,
				ConverterFilename:   converterFile,
			}

			code, err := fimfic2cover.Run(cmd.Context(), opts, log)
			exitCode = code
			return err
		},
	}
	root.SetVersionTemplate("{{.Name}}, version {{.Version}}\n")

	flags := root.Flags()
	flags.BoolVar(&debug, "debug", false, "Show debugging output.")
	flags.StringVar(&configPath, "config", "",
		"Path to a YAML settings file supplying flag defaults (default ~/.fimfic2cover.yaml).")
	flags.StringVar(&imageDir, "image-dir", "",
		"Directory to store the cover image and serve it to 0.0.0.0 if necessary. Defaults to the current directory.")
	flags.StringVar(&titleFont, "title-font", "",
		"Title's font to use on the cover if needed. Defaults to the bundled Go Bold.")
	flags.Float64Var(&titleFontSize, "title-font-size", 100,
		"Title's font size to use on the cover if needed.")
	flags.StringVar(&authorFont, "author-font", "",
		"Author's font to use on the cover if needed. Defaults to the bundled Go Regular.")
	flags.Float64Var(&authorFontSize, "author-font-size", 50,
		"Author's font size to use on the cover if needed.")
	flags.IntVar(&wait, "wait", 5,
		"Extra seconds to wait before executing fimfic2epub when the server is started, to ensure that it is ready.")
	flags.StringVar(&converterExe, "converter-executable", fimfic2cover.DefaultConverterExecutable(),
		"Location of the fimfic2epub executable.")
	flags.StringVar(&converterDir, "converter-dir", "",
		"Forwarded into fimfic2epub as \"--dir DIR\".")
	flags.StringVar(&converterExtra, "converter-extra-flags", "",
		"Flags to forward into fimfic2epub. \"-C <url>\" is added automatically when the story doesn't have a cover; use --converter-dir for the directory.")
	flags.StringVar(&converterFile, "converter-filename", "",
		"Filename of the epub that will be created, forwarded into fimfic2epub itself.")

	if err := root.Execute(); err != nil {
		log.Error(err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	log.Debugf("Finished with return code of %d.", exitCode)
	os.Exit(exitCode)
}
