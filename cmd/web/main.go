package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	gd "github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sh "github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/johnnycloud/posture/pkg/handlers/posture"
	"github.com/johnnycloud/posture/pkg/server"
	"github.com/johnnycloud/posture/pkg/services/assistant"
	"github.com/johnnycloud/posture/pkg/services/awsx"
	"github.com/johnnycloud/posture/pkg/services/config"
	"github.com/johnnycloud/posture/pkg/services/cost"
	"github.com/johnnycloud/posture/pkg/services/guardduty"
	"github.com/johnnycloud/posture/pkg/services/iamaudit"
	"github.com/johnnycloud/posture/pkg/services/netscan"
	"github.com/johnnycloud/posture/pkg/services/securityhub"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the cloud posture API",
		RunE:  runServer,
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	settings := config.Load()

	awsCfg, err := awsx.LoadConfig(ctx, settings.AWSRegion)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	timeout := settings.ProbeTimeout
	handler := posture.NewHandler(
		cost.NewProbe(costexplorer.NewFromConfig(*awsCfg), timeout),
		guardduty.NewProbe(gd.NewFromConfig(*awsCfg), timeout),
		securityhub.NewProbe(sh.NewFromConfig(*awsCfg), timeout),
		iamaudit.NewProbe(iam.NewFromConfig(*awsCfg), timeout),
		netscan.NewProbe(ec2.NewFromConfig(*awsCfg), s3.NewFromConfig(*awsCfg), timeout),
		assistant.NewService(
			bedrockruntime.NewFromConfig(*awsCfg),
			settings.BedrockModelID,
			settings.SystemPrompt,
			timeout,
		),
	)

	addr := net.JoinHostPort(settings.ServerHost, settings.ServerPort)
	api := server.NewWebAPI(logger, server.Config{
		Addr:            addr,
		CORSOrigin:      settings.CORSOrigin,
		ShutdownTimeout: 10 * time.Second,
		Dependencies: server.Dependencies{
			Posture: handler,
			Logger:  logger,
		},
	})

	return api.Start()
}
