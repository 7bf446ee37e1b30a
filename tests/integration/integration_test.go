package integration_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sitewerks/spectrum-sync/internal/config"
	"github.com/sitewerks/spectrum-sync/internal/database"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/services"
	"github.com/sitewerks/spectrum-sync/internal/spectrum"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// fakeVendor serves WSDL probes and canned SOAP responses for a full sync.
func fakeVendor(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	respond := func(operation string, body []byte) string {
		jobNumber := ""
		envelope := string(body)
		if start := strings.Index(envelope, "<Job_Number>"); start >= 0 {
			end := strings.Index(envelope, "</Job_Number>")
			jobNumber = envelope[start+len("<Job_Number>") : end]
		}

		switch operation {
		case spectrum.OpGetJob:
			return `<NewDataSet>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>21-100</Job_Number>
			    <Job_Description>North Tower</Job_Description><Division>100</Division>
			    <Status_Code>A</Status_Code>
			  </response>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>21-101</Job_Number>
			    <Job_Description>Parking Deck</Job_Description><Division>100</Division>
			    <Status_Code>A</Status_Code>
			  </response>
			</NewDataSet>`
		case spectrum.OpGetJobMain:
			return `<NewDataSet>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>21-100</Job_Number>
			    <Contract_Amount>1,000.00</Contract_Amount><Cost_JTD>250</Cost_JTD>
			  </response>
			</NewDataSet>`
		case spectrum.OpGetPHByJob:
			return `<NewDataSet>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>21-100</Job_Number>
			    <Phase_Code>0100</Phase_Code><Cost_Type>L</Cost_Type><JTD_Dollars>100</JTD_Dollars>
			  </response>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>21-100</Job_Number>
			    <Phase_Code>0200</Phase_Code><Cost_Type>M</Cost_Type><JTD_Dollars>50</JTD_Dollars>
			  </response>
			</NewDataSet>`
		case spectrum.OpGetJobContacts:
			return fmt.Sprintf(`<NewDataSet>
			  <response>
			    <Company_Code>FTL</Company_Code><Job_Number>%s</Job_Number>
			    <Contact_ID>C1</Contact_ID><Contact_Name>Pat Q</Contact_Name>
			  </response>
			</NewDataSet>`, jobNumber)
		}
		return "<NewDataSet></NewDataSet>"
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		operation := strings.TrimPrefix(r.URL.Path, "/")
		operation = strings.TrimSuffix(operation, "/service.asmx")
		operation = strings.TrimSuffix(operation, ".asmx")
		operation = strings.TrimPrefix(operation, "soap/")

		if r.Method == http.MethodGet {
			fmt.Fprintf(w, `<?xml version="1.0"?>
<definitions xmlns="http://schemas.xmlsoap.org/wsdl/" xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/">
  <service><port><soap:address location="%s/soap/%s"/></port></service>
</definitions>`, server.URL, operation)
			return
		}

		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <%[1]sResponse xmlns="http://tempuri.org/">
      <%[1]sResult>%[2]s</%[1]sResult>
    </%[1]sResponse>
  </soap:Body>
</soap:Envelope>`, operation, respond(operation, body))
	})

	return server
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// TestSyncWithMariaDB runs a full sync against a real MariaDB container,
// exercising the ON DUPLICATE KEY upsert path the in-memory sqlite tests
// cannot reach. Requires DB_IMAGE (e.g. mariadb:11) and a docker daemon.
func TestSyncWithMariaDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbImage := os.Getenv("DB_IMAGE")
	if dbImage == "" {
		t.Skip("Skipping integration test: DB_IMAGE not set")
	}

	ctx := context.Background()

	mariadbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "testdb",
				"MYSQL_USER":          "testuser",
				"MYSQL_PASSWORD":      "testpass",
			},
			WaitingFor: wait.ForLog("ready for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}
	defer func() {
		if err := mariadbContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MariaDB container: %v", err)
		}
	}()

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := mariadbContainer.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	vendor := fakeVendor(t)

	cfg := &config.Config{
		DBType:                  "mysql",
		DBHost:                  host,
		DBPort:                  port.Port(),
		DBDatabase:              "testdb",
		DBUser:                  "testuser",
		DBPassword:              "testpass",
		DBConnectionLimit:       5,
		SpectrumBaseURL:         vendor.URL,
		SpectrumAuthID:          "test-auth",
		SpectrumCompany:         "FTL",
		SpectrumStatusCodes:     []string{"A"},
		SpectrumPageCap:         500,
		ContactWorkers:          2,
		RawPayloadRetentionDays: 14,
		FallbackBranch:          "Unassigned",
	}

	// Wait for database to be ready
	time.Sleep(5 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	svc := &services.SyncService{
		DB:     db,
		Client: spectrum.NewClient(vendor.URL, cfg.SpectrumAuthID, 10*time.Second, nil, quietLogger()),
		Cfg:    cfg,
		Log:    quietLogger(),
	}

	t.Run("FullSyncRun", func(t *testing.T) {
		run, err := svc.Run(ctx, services.SyncOptions{Trigger: models.TriggerManual})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.Status != models.SyncSuccess {
			t.Fatalf("run status = %s, error = %s", run.Status, run.ErrorMessage)
		}

		var jobs int64
		db.Model(&models.ExternalJob{}).Count(&jobs)
		if jobs != 2 {
			t.Errorf("expected 2 jobs, got %d", jobs)
		}
		var phases int64
		db.Model(&models.ExternalJobPhaseAggregate{}).Count(&phases)
		if phases != 2 {
			t.Errorf("expected 2 phase aggregates, got %d", phases)
		}
		var projects int64
		db.Model(&models.Project{}).Count(&projects)
		if projects != 2 {
			t.Errorf("expected 2 projects, got %d", projects)
		}
	})

	t.Run("RepeatRunIsIdempotent", func(t *testing.T) {
		run, err := svc.Run(ctx, services.SyncOptions{Trigger: models.TriggerScheduled})
		if err != nil {
			t.Fatalf("Second run failed: %v", err)
		}
		if run.Status != models.SyncSuccess {
			t.Fatalf("run status = %s, error = %s", run.Status, run.ErrorMessage)
		}

		var jobs int64
		db.Model(&models.ExternalJob{}).Count(&jobs)
		if jobs != 2 {
			t.Errorf("expected 2 jobs after repeat run, got %d", jobs)
		}
		var projects int64
		db.Model(&models.Project{}).Count(&projects)
		if projects != 2 {
			t.Errorf("expected 2 projects after repeat run, got %d", projects)
		}
		var runs int64
		db.Model(&models.SyncRun{}).Count(&runs)
		if runs != 2 {
			t.Errorf("expected 2 ledger rows, got %d", runs)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		result := services.HealthCheck(cfg, db)
		if result.Database != "ok" {
			t.Errorf("Expected database to be ok, got: %s", result.Database)
		}
		if result.Spectrum != "ok" {
			t.Errorf("Expected spectrum endpoint to be ok, got: %s", result.Spectrum)
		}
		if result.Status != "healthy" {
			t.Errorf("Expected status to be healthy, got: %s", result.Status)
		}
	})
}
