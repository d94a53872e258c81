package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

const (
	MetricAverageSheet = "Metric Averages"
	RiskScoreSheet     = "Risk Scores"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type MetricAverageRow struct {
	*models.MetricAverageSummary
}

func (r MetricAverageRow) GetCellValues() []interface{} {
	code, name := "", ""
	if r.Metric != nil {
		code, name = r.Metric.Code, r.Metric.Name
	}
	return []interface{}{
		r.MetricId, code, name, r.CompanyCount,
		utils.NullDecimalString(r.AvgValue, models.MetricAverageScale),
		utils.NullDecimalString(r.MedianValue, models.MetricAverageScale),
		utils.NullDecimalString(r.MinValue, models.MetricAverageScale),
		utils.NullDecimalString(r.MaxValue, models.MetricAverageScale),
		utils.NullDecimalString(r.StddevValue, models.MetricAverageScale),
		r.DataSourceVersion,
	}
}

type RiskScoreRow struct {
	*models.RiskScoreSummary
}

func (r RiskScoreRow) GetCellValues() []interface{} {
	company, versionNo := "", 0
	if r.Company != nil {
		company = r.Company.Name
	}
	if r.ReportVersion != nil {
		versionNo = r.ReportVersion.VersionNo
	}
	return []interface{}{
		r.CompanyId, company, versionNo,
		utils.NullDecimalString(r.RiskScore, models.RiskScoreScale),
		string(r.RiskLevel),
		r.RiskMetricsCount,
	}
}

var (
	metricAverageHeadings = []string{"MetricId", "Code", "Name", "CompanyCount", "Avg", "Median", "Min", "Max", "Stddev", "DataSourceVersion"}
	riskScoreHeadings     = []string{"CompanyId", "Company", "ReportVersion", "RiskScore", "RiskLevel", "RiskMetricsCount"}
)

// BuildQuarterSummaryWorkbook loads both summaries of a quarter into a two-sheet workbook.
func BuildQuarterSummaryWorkbook(ctx context.Context, db *gorm.DB, quarterId int) (*excelize.File, error) {
	averages, err := models.ListMetricAveragesByQuarter(ctx, db, quarterId)
	if err != nil {
		return nil, err
	}
	scores, err := models.ListRiskScoresByQuarter(ctx, db, quarterId)
	if err != nil {
		return nil, err
	}

	averageRows := make([]ExcelExporter, 0, len(averages))
	for _, a := range averages {
		averageRows = append(averageRows, MetricAverageRow{a})
	}
	scoreRows := make([]ExcelExporter, 0, len(scores))
	for _, s := range scores {
		scoreRows = append(scoreRows, RiskScoreRow{s})
	}

	return newWorkbook(
		summarySheet{MetricAverageSheet, averageRows, metricAverageHeadings},
		summarySheet{RiskScoreSheet, scoreRows, riskScoreHeadings},
	)
}

type summarySheet struct {
	name     string
	rows     []ExcelExporter
	headings []string
}

// newWorkbook closes the file on any error, the caller owns it otherwise.
func newWorkbook(sheets ...summarySheet) (*excelize.File, error) {
	f := excelize.NewFile()
	for _, sheet := range sheets {
		if err := fillSheet(f, sheet.name, sheet.rows, sheet.headings...); err != nil {
			f.Close()
			return nil, err
		}
	}
	// excelize always starts with Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func ExportQuarterSummary(ctx context.Context, db *gorm.DB, quarterId int, filename string) error {
	f, err := BuildQuarterSummaryWorkbook(ctx, db, quarterId)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}

func WriteQuarterSummary(ctx context.Context, db *gorm.DB, quarterId int, w io.Writer) error {
	f, err := BuildQuarterSummaryWorkbook(ctx, db, quarterId)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// UploadQuarterSummary archives the quarter workbook to GCS and returns its gs:// URI.
// An empty objectName uses summaries/quarter-<id>-<timestamp>.xlsx.
func UploadQuarterSummary(ctx context.Context, db *gorm.DB, quarterId int, objectName string) (string, error) {
	if objectName == "" {
		objectName = fmt.Sprintf("summaries/quarter-%d-%s.xlsx", quarterId, time.Now().UTC().Format("20060102T150405Z"))
	}
	var buf bytes.Buffer
	if err := WriteQuarterSummary(ctx, db, quarterId, &buf); err != nil {
		return "", err
	}
	return utils.UploadBytesToGCS(ctx, objectName, buf.Bytes(), utils.XlsxContentType)
}

func fillSheet(f *excelize.File, sheetName string, data []ExcelExporter, headings ...string) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for rowIdx, d := range data {
		for colIdx, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
