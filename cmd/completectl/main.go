// completectl is a small command-line client for exercising the completion
// layer against a configured backend: mkdir, stat, ls, cat, put, and rm,
// each dispatched through complete.Layer(backend) rather than the backend
// directly, so a backend's missing capabilities (no create_dir, no
// list_with_recursive, ...) are transparently filled in exactly as they
// would be for any other caller above this layer.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/NVIDIA/multi-storage-client/complete/internal/config"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/backend/memory"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/backend/s3backend"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/backend/sftpbackend"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/complete"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/telemetry"
)

var displayHelpMatchSet = map[string]struct{}{
	"-?": {}, "-h": {}, "help": {}, "-help": {}, "--help": {},
}

func main() {
	if len(os.Args) < 3 || matchesHelp(os.Args[1]) {
		usage()
		os.Exit(0)
	}

	configFilePath := os.Args[1]
	op := os.Args[2]
	args := os.Args[3:]

	cfg, err := config.Load(configFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "completectl: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		cancel()
	}()

	backend, err := buildBackend(ctx, cfg.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "completectl: %v\n", err)
		os.Exit(1)
	}

	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		attributeProviders := []telemetry.AttributesProvider{
			telemetry.HostAttributesProvider{Key: "host.name"},
			telemetry.ProcessAttributesProvider{Key: "process.pid"},
		}
		if len(cfg.Telemetry.Attributes) > 0 {
			attributeProviders = append(attributeProviders, telemetry.ConfigAttributesProvider{
				Config:      cfg.Raw,
				Expressions: cfg.Telemetry.Attributes,
			})
		}

		if _, _, err := telemetry.SetupMeterProvider(ctx, telemetry.Config{
			Enabled:            true,
			OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
			ExportInterval:     cfg.Telemetry.ExportInterval,
			ServiceName:        cfg.Telemetry.ServiceName,
			Insecure:           cfg.Telemetry.Insecure,
			AttributeProviders: attributeProviders,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "completectl: telemetry setup failed: %v\n", err)
		}

		completionMetrics, err := telemetry.NewCompletionMetrics(cfg.Telemetry.ServiceName, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "completectl: completion metrics setup failed: %v\n", err)
		} else {
			processMetrics := telemetry.NewProcessMetrics()
			recorder = &telemetry.Recorder{
				Completion: &completionMetrics,
				Process:    processMetrics,
				Backend:    cfg.Backend.Type,
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", processMetrics.Handler())
			server := &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					fmt.Fprintf(os.Stderr, "completectl: metrics server: %v\n", err)
				}
			}()
			go func() {
				<-ctx.Done()
				server.Close()
			}()
		}
	}

	var layerOpts []complete.LayerOption
	if recorder != nil {
		layerOpts = append(layerOpts, complete.WithMetrics(recorder))
	}
	a := complete.Layer(backend, layerOpts...)

	if err := dispatch(ctx, a, op, args); err != nil {
		fmt.Fprintf(os.Stderr, "completectl: %s: %v\n", op, err)
		os.Exit(1)
	}
}

func matchesHelp(arg string) bool {
	_, ok := displayHelpMatchSet[arg]
	return ok
}

func usage() {
	fmt.Printf("usage: %s <config-file> <command> [args...]\n", os.Args[0])
	fmt.Printf("commands:\n")
	fmt.Printf("  mkdir <path>\n")
	fmt.Printf("  stat  <path>\n")
	fmt.Printf("  ls    <path> [-r]\n")
	fmt.Printf("  cat   <path>\n")
	fmt.Printf("  put   <path>   (reads content from stdin)\n")
	fmt.Printf("  rm    <path>\n")
}

func buildBackend(ctx context.Context, cfg config.BackendConfig) (accessor.Accessor, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory.WriteCanAppend), nil
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Bucket:                    cfg.S3.Bucket,
			Prefix:                    cfg.S3.Prefix,
			Region:                    cfg.S3.Region,
			Endpoint:                  cfg.S3.Endpoint,
			AccessKeyID:               cfg.S3.AccessKeyID,
			SecretAccessKey:           cfg.S3.SecretAccessKey,
			AllowHTTP:                 cfg.S3.AllowHTTP,
			SkipTLSCertificateVerify:  cfg.S3.SkipTLSCertificateVerify,
			VirtualHostedStyleRequest: cfg.S3.VirtualHostedStyleRequest,
		})
	case "sftp":
		return sftpbackend.Dial(ctx, sftpbackend.Config{
			Addr:        cfg.SFTP.Addr,
			User:        cfg.SFTP.User,
			Password:    cfg.SFTP.Password,
			Root:        cfg.SFTP.Root,
			DialTimeout: cfg.SFTP.DialTimeout,
		})
	default:
		return nil, fmt.Errorf("unrecognized backend type %q", cfg.Type)
	}
}

func dispatch(ctx context.Context, a accessor.Accessor, op string, args []string) error {
	switch op {
	case "mkdir":
		if len(args) != 1 {
			return fmt.Errorf("mkdir requires exactly one path argument")
		}
		_, err := a.CreateDir(ctx, args[0], accessor.OpCreateDir{})
		return err

	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("stat requires exactly one path argument")
		}
		rp, err := a.Stat(ctx, args[0], accessor.OpStat{})
		if err != nil {
			return err
		}
		fmt.Printf("%s  mode=%s  size=%d\n", args[0], rp.Metadata.Mode, rp.Metadata.ContentLength)
		return nil

	case "ls":
		if len(args) < 1 {
			return fmt.Errorf("ls requires a path argument")
		}
		recursive := false
		path := args[0]
		for _, flag := range args[1:] {
			if flag == "-r" {
				recursive = true
			}
		}
		_, lister, err := a.List(ctx, path, accessor.OpList{Recursive: recursive})
		if err != nil {
			return err
		}
		for {
			entry, err := lister.Next(ctx)
			if err != nil {
				return err
			}
			if entry == nil {
				return nil
			}
			fmt.Println(entry.Path)
		}

	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("cat requires exactly one path argument")
		}
		_, reader, err := a.Read(ctx, args[0], accessor.OpRead{})
		if err != nil {
			return err
		}
		for {
			chunk, err := reader.Read(ctx)
			if err != nil {
				return err
			}
			if len(chunk) == 0 {
				return nil
			}
			os.Stdout.Write(chunk)
		}

	case "put":
		if len(args) != 1 {
			return fmt.Errorf("put requires exactly one path argument")
		}
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		_, writer, err := a.Write(ctx, args[0], accessor.OpWrite{ContentLength: uint64(len(content))})
		if err != nil {
			return err
		}
		if len(content) > 0 {
			if err := writer.Write(ctx, content); err != nil {
				return err
			}
		}
		_, err = writer.Close(ctx)
		return err

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("rm requires exactly one path argument")
		}
		_, deleter, err := a.Delete(ctx)
		if err != nil {
			return err
		}
		return deleter.Delete(ctx, args[0])

	default:
		usage()
		return fmt.Errorf("unrecognized command %q", op)
	}
}
