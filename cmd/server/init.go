package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-modulus/internal/config"
	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/service"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize go-modulus with default configuration and an example mocks tree",
	Long: `Creates the default configuration file (config.yaml) and an example mocks tree.

This command will:
  - Create config.yaml with default settings
  - Create mocks/payments, a config-defined service with three variants
  - Create mocks/sim-status, a config-defined service with a proxy variant
  - Create mocks/okta and mocks/transaction-details entry points for the
    built-in code services
  - Create mocks/uniqueKeys.json with example field generators

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := `# Go-Modulus Configuration
# Every key can be overridden with GOMODULUS_<SECTION>_<KEY>, e.g. GOMODULUS_SERVER_PORT

`
	if err := writeFile(configFile, []byte(header+string(data))); err != nil {
		return err
	}

	files, err := exampleTree()
	if err != nil {
		return err
	}
	mocksDir := filepath.Join(absPath, "mocks")
	for rel, content := range files {
		if err := writeFile(filepath.Join(mocksDir, rel), content); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("Initialization complete! You can now start the server with:")
	fmt.Println()
	fmt.Printf("  cd %s\n", absPath)
	fmt.Println("  go-modulus serve")
	fmt.Println()

	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Created file: %s\n", path)
	return nil
}

// exampleTree returns the example mocks tree keyed by relative path
func exampleTree() (map[string][]byte, error) {
	files := make(map[string][]byte)

	addJSON := func(rel string, v interface{}) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", rel, err)
		}
		files[rel] = append(data, '\n')
		return nil
	}
	addYAML := func(rel string, v interface{}) error {
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", rel, err)
		}
		files[rel] = data
		return nil
	}

	jsonFiles := map[string]interface{}{
		"payments/" + service.ConfigEntryFile: models.ServiceConfig{
			Name:            "Payments",
			Desc:            "Card payment authorization",
			DefaultResponse: "success",
			Method:          "POST",
			Path:            "/charges",
			UniqueKey:       &models.UniqueKeySpec{Target: models.TargetBody, Modifier: "account.id", Type: "account"},
		},
		"payments/success.json": map[string]interface{}{
			"name":   "Approved",
			"status": 201,
			"body":   map[string]interface{}{"status": "APPROVED"},
		},
		"payments/declined.json": map[string]interface{}{
			"name":    "Declined",
			"status":  402,
			"headers": map[string]string{"X-Decline-Reason": "insufficient_funds"},
			"body":    map[string]interface{}{"status": "DECLINED"},
		},
		"payments/error.json": map[string]interface{}{
			"name":   "Server error",
			"status": 500,
			"body":   map[string]interface{}{"error": "upstream unavailable"},
		},
		"sim-status/" + service.ConfigEntryFile: models.ServiceConfig{
			Name:            "SIM Status",
			Desc:            "SIM activation status by mobile number",
			DefaultResponse: models.ProxyVariantID,
			Method:          "GET",
			Path:            "/status",
			UniqueKey:       &models.UniqueKeySpec{Target: models.TargetQuery, Modifier: "mobileNumber", Type: "mobileNumber"},
		},
		"sim-status/failed.json": map[string]interface{}{
			"name":   "Failed",
			"status": 200,
			"body":   map[string]interface{}{"status": "FAILED"},
		},
		"uniqueKeys.json": []models.GeneratorConfig{
			{Name: "account", Type: models.GeneratorTypeIncrementing, Config: &models.GeneratorParams{Prefix: "ACC-", Start: "1000"}},
			{Name: "mobileNumber", Type: "phone.number"},
		},
	}
	for rel, v := range jsonFiles {
		if err := addJSON(rel, v); err != nil {
			return nil, err
		}
	}

	yamlFiles := map[string]interface{}{
		"sim-status/" + service.ProxyFile:              map[string]string{"handler": simStatusHandler},
		"okta/" + service.CodeEntryFile:                map[string]string{"handler": oktaHandler},
		"transaction-details/" + service.CodeEntryFile: map[string]string{"handler": transactionsHandler},
	}
	for rel, v := range yamlFiles {
		if err := addYAML(rel, v); err != nil {
			return nil, err
		}
	}

	return files, nil
}
