package api

import (
	"github.com/robfig/cron/v3"

	"github.com/recordly/exportd/internal/domain"
)

var validFormats = map[string]bool{
	string(domain.FormatCSV):   true,
	string(domain.FormatExcel): true,
	string(domain.FormatPDF):   true,
	string(domain.FormatJSON):  true,
}

var validFrequencies = map[string]bool{
	string(domain.FrequencyDaily):     true,
	string(domain.FrequencyWeekly):    true,
	string(domain.FrequencyMonthly):   true,
	string(domain.FrequencyQuarterly): true,
	string(domain.FrequencyYearly):    true,
	string(domain.FrequencyCustom):    true,
}

func validateCreateExport(req CreateExportRequest) error {
	if err := validateFormat(req.Format, req.TemplateID); err != nil {
		return err
	}
	if len(req.Fields) == 0 && req.TemplateID == "" {
		return domain.ValidationError{Field: "fields", Message: "required unless template_id is set"}
	}
	return validateFields(req.Fields)
}

func validateCreateSchedule(req CreateScheduleRequest) error {
	if req.Name == "" {
		return domain.ValidationError{Field: "name", Message: "required"}
	}
	if err := validateFormat(req.Format, req.TemplateID); err != nil {
		return err
	}
	if len(req.Fields) == 0 && req.TemplateID == "" {
		return domain.ValidationError{Field: "fields", Message: "required unless template_id is set"}
	}
	if err := validateFields(req.Fields); err != nil {
		return err
	}

	if !validFrequencies[req.Frequency] {
		return domain.ValidationError{Field: "frequency", Message: "must be one of daily, weekly, monthly, quarterly, yearly, custom"}
	}
	if req.Frequency == string(domain.FrequencyCustom) {
		if req.CustomExpr == "" {
			return domain.ValidationError{Field: "custom_expr", Message: "required for custom frequency"}
		}
		if err := validateCron(req.CustomExpr); err != nil {
			return domain.ValidationError{Field: "custom_expr", Message: err.Error()}
		}
	} else if req.CustomExpr != "" {
		return domain.ValidationError{Field: "custom_expr", Message: "only allowed for custom frequency"}
	}

	if req.Retention != nil {
		if req.Retention.KeepCount < 1 {
			return domain.ValidationError{Field: "retention.keep_count", Message: "must be >= 1"}
		}
		if req.Retention.KeepDays < 1 {
			return domain.ValidationError{Field: "retention.keep_days", Message: "must be >= 1"}
		}
	}
	return nil
}

func validateCreateTemplate(req CreateTemplateRequest) error {
	if req.Name == "" {
		return domain.ValidationError{Field: "name", Message: "required"}
	}
	if !validFormats[req.Format] {
		return domain.ValidationError{Field: "format", Message: "must be one of csv, excel, pdf, json"}
	}
	if len(req.Fields) == 0 {
		return domain.ValidationError{Field: "fields", Message: "required"}
	}
	return validateFields(req.Fields)
}

// validateFormat allows an empty format only when a template is referenced;
// the template's format is inherited at creation time.
func validateFormat(format, templateID string) error {
	if format == "" {
		if templateID == "" {
			return domain.ValidationError{Field: "format", Message: "required unless template_id is set"}
		}
		return nil
	}
	if !validFormats[format] {
		return domain.ValidationError{Field: "format", Message: "must be one of csv, excel, pdf, json"}
	}
	return nil
}

func validateFields(fields []FieldRequest) error {
	for _, f := range fields {
		if f.Name == "" {
			return domain.ValidationError{Field: "fields", Message: "field name must not be empty"}
		}
	}
	return nil
}

func validateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}
