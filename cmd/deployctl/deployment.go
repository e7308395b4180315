package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy an artifact to a target",
	Run:   runDeploy,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [deployment_id]",
	Short: "Resume an interrupted deployment",
	Args:  cobra.ExactArgs(1),
	Run:   runResume,
}

var teardownCmd = &cobra.Command{
	Use:   "teardown [deployment_id]",
	Short: "Tear down a deployment",
	Args:  cobra.ExactArgs(1),
	Run:   runTeardown,
}

var statusCmd = &cobra.Command{
	Use:   "status [deployment_id]",
	Short: "Check the health of a deployment",
	Args:  cobra.ExactArgs(1),
	Run:   runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all deployments",
	Run:   runList,
}

var (
	deployArtifactID  string
	deployArtifactURI string
	deployFingerprint string
	deployKind        string
	deployName        string
	deployParams      map[string]string
	deployReplace     bool
)

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(teardownCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)

	deployCmd.Flags().StringVar(&deployArtifactID, "artifact-id", "", "Artifact identifier (required)")
	deployCmd.Flags().StringVar(&deployArtifactURI, "artifact-uri", "", "Artifact location (required)")
	deployCmd.Flags().StringVar(&deployFingerprint, "fingerprint", "", "Artifact content fingerprint (required)")
	deployCmd.Flags().StringVarP(&deployKind, "kind", "k", "", "Target kind (required)")
	deployCmd.Flags().StringVarP(&deployName, "name", "n", "", "Target name (required)")
	deployCmd.Flags().StringToStringVarP(&deployParams, "param", "p", nil, "Target parameter key=value")
	deployCmd.Flags().BoolVar(&deployReplace, "replace", false, "Replace the active deployment on the target")
}

func runDeploy(cmd *cobra.Command, args []string) {
	c, err := buildController()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	d, err := c.Deploy(context.Background(), model.FormDeploy{
		Artifact: model.ArtifactRef{ID: deployArtifactID, URI: deployArtifactURI, Fingerprint: deployFingerprint},
		Target:   model.TargetConfig{Kind: deployKind, Name: deployName, Params: deployParams},
		Replace:  deployReplace,
	})
	if err != nil {
		log.Fatalf("Deploy failed: %v", err)
	}
	fmt.Printf("Deployment %s is %s\n", d.ID, d.Status)
	if d.Activation.Endpoint != "" {
		fmt.Printf("Endpoint: %s\n", d.Activation.Endpoint)
	}
	if d.Status != model.DeploymentStatusActive {
		os.Exit(1)
	}
}

func runResume(cmd *cobra.Command, args []string) {
	c, err := buildController()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	d, err := c.Resume(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Resume failed: %v", err)
	}
	fmt.Printf("Deployment %s is %s\n", d.ID, d.Status)
	if d.Status != model.DeploymentStatusActive {
		os.Exit(1)
	}
}

func runTeardown(cmd *cobra.Command, args []string) {
	c, err := buildController()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	if err = c.Teardown(context.Background(), args[0]); err != nil {
		log.Fatalf("Teardown failed: %v", err)
	}
	fmt.Printf("Deployment %s is torn down\n", args[0])
}

func runStatus(cmd *cobra.Command, args []string) {
	c, err := buildController()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	h, err := c.Status(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Status check failed: %v", err)
	}
	fmt.Println(h)
	if h != model.HealthHealthy && h != model.HealthTornDown {
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	c, err := buildController()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	list, err := c.Deployments(context.Background())
	if err != nil {
		log.Fatalf("Failed to list deployments: %v", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tARTIFACT\tSTATUS\tHEALTH\tCREATED")
	for _, d := range list {
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.TargetKind, d.TargetName, d.ArtifactID, d.Status, d.LastHealth,
			d.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
}
