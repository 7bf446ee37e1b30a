package services

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/spectrum"
)

// Vendor date formats, tried in order.
var dateFormats = []string{
	"01/02/2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
}

// parseDecimal parses a vendor numeric string defensively: commas and currency
// markers are stripped, malformed values become zero with a logged warning.
// Field defects never abort a batch.
func parseDecimal(log *logrus.Logger, field, value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	cleaned := strings.NewReplacer(",", "", "$", "", "(", "-", ")", "").Replace(value)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		log.WithFields(logrus.Fields{"field": field, "value": value}).
			Warn("malformed decimal, stored as zero")
		return 0
	}
	return f
}

// parseDate parses a vendor date defensively; malformed or blank values become
// nil with a logged warning, never an error.
func parseDate(log *logrus.Logger, field, value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	log.WithFields(logrus.Fields{"field": field, "value": value}).
		Warn("malformed date, stored as null")
	return nil
}

// truncate bounds a vendor string to the target column's declared width;
// vendor data occasionally exceeds nominal widths. The cut lands on a rune
// boundary so a multi-byte character is never split into invalid UTF-8.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// JobFromRow maps a GetJob row (optionally overlaid with its GetJobMain row)
// onto an ExternalJob.
func JobFromRow(log *logrus.Logger, row spectrum.Row, syncedAt time.Time) models.ExternalJob {
	return models.ExternalJob{
		CompanyCode:    truncate(row["Company_Code"], 10),
		JobNumber:      truncate(row["Job_Number"], 20),
		Description:    truncate(row["Job_Description"], 255),
		Division:       truncate(row["Division"], 10),
		Address1:       truncate(row["Address_1"], 255),
		Address2:       truncate(row["Address_2"], 255),
		City:           truncate(row["City"], 100),
		State:          truncate(row["State"], 10),
		ZipCode:        truncate(row["Zip_Code"], 20),
		ProjectManager: truncate(row["Project_Manager"], 100),
		Superintendent: truncate(row["Superintendent"], 100),
		Estimator:      truncate(row["Estimator"], 100),
		CustomerCode:   truncate(row["Customer_Code"], 20),
		StatusCode:     truncate(row["Status_Code"], 1),
		ContractNumber: truncate(row["Contract_Number"], 30),

		ContractAmount:   parseDecimal(log, "Contract_Amount", row["Contract_Amount"]),
		OriginalContract: parseDecimal(log, "Original_Contract_Amount", row["Original_Contract_Amount"]),
		TotalBilled:      parseDecimal(log, "Billed_JTD", row["Billed_JTD"]),
		CostToDate:       parseDecimal(log, "Cost_JTD", row["Cost_JTD"]),
		ProjectedCost:    parseDecimal(log, "Projected_Cost", row["Projected_Cost"]),
		EstimatedCost:    parseDecimal(log, "Estimated_Cost", row["Estimated_Cost"]),

		LastSyncedAt: syncedAt,
	}
}

// MergeJobMain overlays GetJobMain detail fields onto a job converted from the
// GetJob listing. Only fields the main record actually carries are replaced.
func MergeJobMain(log *logrus.Logger, job *models.ExternalJob, row spectrum.Row) {
	if v := row["Contract_Amount"]; v != "" {
		job.ContractAmount = parseDecimal(log, "Contract_Amount", v)
	}
	if v := row["Original_Contract_Amount"]; v != "" {
		job.OriginalContract = parseDecimal(log, "Original_Contract_Amount", v)
	}
	if v := row["Billed_JTD"]; v != "" {
		job.TotalBilled = parseDecimal(log, "Billed_JTD", v)
	}
	if v := row["Cost_JTD"]; v != "" {
		job.CostToDate = parseDecimal(log, "Cost_JTD", v)
	}
	if v := row["Projected_Cost"]; v != "" {
		job.ProjectedCost = parseDecimal(log, "Projected_Cost", v)
	}
	if v := row["Estimated_Cost"]; v != "" {
		job.EstimatedCost = parseDecimal(log, "Estimated_Cost", v)
	}
	if v := row["Contract_Number"]; v != "" {
		job.ContractNumber = truncate(v, 30)
	}
	if v := row["Customer_Code"]; v != "" {
		job.CustomerCode = truncate(v, 20)
	}
}

// DatesFromRow maps a GetJobDates row onto ExternalJobDates.
func DatesFromRow(log *logrus.Logger, row spectrum.Row, syncedAt time.Time) models.ExternalJobDates {
	return models.ExternalJobDates{
		CompanyCode: truncate(row["Company_Code"], 10),
		JobNumber:   truncate(row["Job_Number"], 20),

		EstimatedStartDate:    parseDate(log, "Est_Start_Date", row["Est_Start_Date"]),
		EstimatedCompleteDate: parseDate(log, "Est_Complete_Date", row["Est_Complete_Date"]),
		ActualStartDate:       parseDate(log, "Actual_Start_Date", row["Actual_Start_Date"]),
		ActualCompleteDate:    parseDate(log, "Actual_Complete_Date", row["Actual_Complete_Date"]),
		ProjectedCompleteDate: parseDate(log, "Projected_Complete_Date", row["Projected_Complete_Date"]),

		LastSyncedAt: syncedAt,
	}
}

// PhaseFromRow maps a GetPHByJob row onto ExternalJobPhaseAggregate.
func PhaseFromRow(log *logrus.Logger, row spectrum.Row, syncedAt time.Time) models.ExternalJobPhaseAggregate {
	return models.ExternalJobPhaseAggregate{
		CompanyCode:   truncate(row["Company_Code"], 10),
		JobNumber:     truncate(row["Job_Number"], 20),
		PhaseCode:     truncate(row["Phase_Code"], 30),
		CostType:      truncate(row["Cost_Type"], 10),
		Description:   truncate(row["Phase_Description"], 255),
		CostCenter:    truncate(row["Cost_Center"], 20),
		UnitOfMeasure: truncate(row["Unit_Of_Measure"], 10),

		JTDQuantity:       parseDecimal(log, "JTD_Quantity", row["JTD_Quantity"]),
		JTDHours:          parseDecimal(log, "JTD_Hours", row["JTD_Hours"]),
		JTDDollars:        parseDecimal(log, "JTD_Dollars", row["JTD_Dollars"]),
		ProjectedQuantity: parseDecimal(log, "Projected_Quantity", row["Projected_Quantity"]),
		ProjectedHours:    parseDecimal(log, "Projected_Hours", row["Projected_Hours"]),
		ProjectedDollars:  parseDecimal(log, "Projected_Dollars", row["Projected_Dollars"]),
		EstimatedQuantity: parseDecimal(log, "Estimated_Quantity", row["Estimated_Quantity"]),
		EstimatedHours:    parseDecimal(log, "Estimated_Hours", row["Estimated_Hours"]),
		EstimatedDollars:  parseDecimal(log, "Estimated_Dollars", row["Estimated_Dollars"]),

		LastSyncedAt: syncedAt,
	}
}

// UDFFromRow maps a GetJobUDF row onto ExternalJobUDF.
func UDFFromRow(row spectrum.Row, syncedAt time.Time) models.ExternalJobUDF {
	udf := models.ExternalJobUDF{
		CompanyCode:  truncate(row["Company_Code"], 10),
		JobNumber:    truncate(row["Job_Number"], 20),
		LastSyncedAt: syncedAt,
	}
	fields := []*string{
		&udf.UDF1, &udf.UDF2, &udf.UDF3, &udf.UDF4, &udf.UDF5,
		&udf.UDF6, &udf.UDF7, &udf.UDF8, &udf.UDF9, &udf.UDF10,
		&udf.UDF11, &udf.UDF12, &udf.UDF13, &udf.UDF14, &udf.UDF15,
		&udf.UDF16, &udf.UDF17, &udf.UDF18, &udf.UDF19, &udf.UDF20,
	}
	for i, target := range fields {
		*target = truncate(row["UDF_"+strconv.Itoa(i+1)], 255)
	}
	return udf
}

// ContactFromRow maps a GetJobContacts row onto ExternalJobContact.
func ContactFromRow(row spectrum.Row, syncedAt time.Time) models.ExternalJobContact {
	return models.ExternalJobContact{
		CompanyCode: truncate(row["Company_Code"], 10),
		JobNumber:   truncate(row["Job_Number"], 20),
		ContactID:   truncate(row["Contact_ID"], 30),
		Name:        truncate(row["Contact_Name"], 100),
		Role:        truncate(row["Contact_Title"], 50),
		Address1:    truncate(row["Address_1"], 255),
		Address2:    truncate(row["Address_2"], 255),
		City:        truncate(row["City"], 100),
		State:       truncate(row["State"], 10),
		ZipCode:     truncate(row["Zip_Code"], 20),
		Phone:       truncate(row["Phone_Number"], 30),
		Email:       truncate(row["Email_Address"], 255),

		LastSyncedAt: syncedAt,
	}
}
