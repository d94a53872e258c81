package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

func TestFillSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := []ExcelExporter{
		MetricAverageRow{&models.MetricAverageSummary{
			MetricId:     3,
			CompanyCount: 2,
			AvgValue:     decimal.NullDecimal{Decimal: decimal.RequireFromString("12.5"), Valid: true},
			Metric:       &models.Metric{Code: "ROE", Name: "Return on equity"},
		}},
		MetricAverageRow{&models.MetricAverageSummary{MetricId: 4}},
	}
	if err := fillSheet(f, MetricAverageSheet, rows, metricAverageHeadings...); err != nil {
		t.Fatalf("fillSheet: %v", err)
	}

	cases := map[string]string{
		"A1": "MetricId",
		"J1": "DataSourceVersion",
		"A2": "3",
		"B2": "ROE",
		"E2": "12.5000",
		"F2": "",
		"A3": "4",
		"B3": "",
	}
	for cell, want := range cases {
		got, err := f.GetCellValue(MetricAverageSheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s: expected %q, got %q", cell, want, got)
		}
	}
}

func TestRiskScoreRowCellValues(t *testing.T) {
	row := RiskScoreRow{&models.RiskScoreSummary{
		CompanyId:        9,
		RiskScore:        decimal.NullDecimal{Decimal: decimal.RequireFromString("70"), Valid: true},
		RiskLevel:        models.RiskLevelDanger,
		RiskMetricsCount: 4,
		Company:          &models.Company{Name: "Gamma"},
		ReportVersion:    &models.ReportVersion{VersionNo: 2},
	}}
	values := row.GetCellValues()
	if len(values) != len(riskScoreHeadings) {
		t.Fatalf("expected %d cells, got %d", len(riskScoreHeadings), len(values))
	}
	if values[1] != "Gamma" || values[2] != 2 || values[3] != "70.00" || values[4] != "DANGER" {
		t.Fatalf("unexpected cells: %v", values)
	}
}

func TestNewWorkbook(t *testing.T) {
	f, err := newWorkbook(
		summarySheet{MetricAverageSheet, nil, metricAverageHeadings},
		summarySheet{RiskScoreSheet, nil, riskScoreHeadings},
	)
	if err != nil {
		t.Fatalf("newWorkbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != MetricAverageSheet || sheets[1] != RiskScoreSheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
}

func TestNewWorkbook_InvalidSheetName(t *testing.T) {
	// sheet names are limited to 31 characters
	f, err := newWorkbook(summarySheet{"a sheet name that is far too long for excel", nil, metricAverageHeadings})
	if err == nil {
		f.Close()
		t.Fatalf("expected an error for an invalid sheet name")
	}
	if f != nil {
		t.Fatalf("expected no workbook on error")
	}
}
