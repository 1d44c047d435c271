package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

type qcHandler struct{}

func (qcHandler) Workflow() *Workflow { return qcWorkflow }

var qcWorkflow = &Workflow{
	Type:  domain.RequestTypeQC,
	Entry: domain.StepMeasurementsRequired,
	Steps: map[domain.Step]StepSpec{
		domain.StepMeasurementsRequired: {Next: []domain.Step{domain.StepMeasurementsValidated}},
		domain.StepMeasurementsValidated: {
			NewPayload: func() any { return &MeasurementsPayload{} },
			Apply:      checkMeasurements,
			AutoNext:   domain.StepVisualInspectionRequired,
		},
		domain.StepVisualInspectionRequired: {Next: []domain.Step{domain.StepVisualInspectionPassed}},
		domain.StepVisualInspectionPassed: {
			NewPayload: func() any { return &VisualInspectionPayload{} },
			Apply:      inspectVisual,
			AutoNext:   domain.StepBinAssignmentRequired,
		},
		domain.StepBinAssignmentRequired: {Next: []domain.Step{domain.StepCompleted}},
		domain.StepCompleted: {
			NewPayload: func() any { return &OptionalBinPayload{} },
			Apply:      completeQC,
		},
	},
}

func checkMeasurements(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	sku, err := sc.Rules.Parse(item.SKU)
	if err != nil {
		return nil, err
	}
	chart, err := domain.FindSizeChart(ctx, sc.Store.SizeCharts(), sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get size chart: %w", err)
	}
	if chart == nil {
		return nil, errors.ErrNotFoundWithID("size chart", sku.SizeKey())
	}

	report, err := chart.Check(payloadAs[MeasurementsPayload](sc).Measurements)
	if err != nil {
		return nil, err
	}

	if item.Stage != domain.StageQC {
		if err := item.Transition(domain.StageQC, domain.CommitmentInProcess, sc.Now); err != nil {
			return nil, err
		}
		if err := sc.SaveItem(ctx, item); err != nil {
			return nil, err
		}
	}

	md := sc.Request.Metadata.QC
	md.SizeChartID = chart.ID
	md.Measurements = report.Results

	if failures := report.Failures(); len(failures) > 0 {
		details := make(map[string]string, len(failures))
		names := make([]string, 0, len(failures))
		for _, f := range failures {
			details[f.Dimension] = fmt.Sprintf("%s not in [%s, %s]", f.Value, f.Tolerance.Min, f.Tolerance.Max)
			names = append(names, f.Dimension)
		}
		return &StepOutcome{Defect: &Defect{
			Step:          domain.StepDefectDetected,
			Category:      domain.ProblemMeasurement,
			Severity:      domain.SeverityMajor,
			Reason:        "measurements out of tolerance: " + strings.Join(names, ", "),
			Details:       details,
			MarkDefective: true,
		}}, nil
	}
	return &StepOutcome{Changes: map[string]string{"sizeChart": chart.Key, "measurements": "passed"}}, nil
}

func inspectVisual(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	p := payloadAs[VisualInspectionPayload](sc)
	md := sc.Request.Metadata.QC
	passed := *p.Passed
	md.VisualPassed = &passed
	md.Defects = p.Defects

	if passed {
		return &StepOutcome{Changes: map[string]string{"visual": "passed"}}, nil
	}

	category := domain.ProblemVisual
	var severity domain.ProblemSeverity
	descriptions := make([]string, 0, len(p.Defects))
	for i, d := range p.Defects {
		if i == 0 {
			category = d.Category
		}
		severity = severity.Worse(d.Severity)
		if d.Description != "" {
			descriptions = append(descriptions, d.Description)
		}
	}
	if severity == "" {
		severity = domain.SeverityMajor
	}
	reason := "visual inspection failed"
	if len(descriptions) > 0 {
		reason += ": " + strings.Join(descriptions, "; ")
	}
	return &StepOutcome{Defect: &Defect{
		Step:          domain.StepDefectDetected,
		Category:      category,
		Severity:      severity,
		Reason:        reason,
		Details:       map[string]string{"defects": fmt.Sprint(len(p.Defects))},
		MarkDefective: true,
	}}, nil
}

// completeQC bins the item and sends it on: to finishing when an order holds
// it, back to stock otherwise.
func completeQC(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}

	var bin *domain.Bin
	if binID := payloadAs[OptionalBinPayload](sc).BinID; binID != "" {
		bin, err = assignItemToBin(ctx, sc, item, binID, domain.BinTypeQC)
	} else {
		bin, err = allocateItemBin(ctx, sc, item, domain.BinTypeQC)
	}
	if err != nil {
		return nil, err
	}
	sc.Request.Metadata.QC.BinID = bin.ID
	sc.Request.BinID = bin.ID

	outcome := &StepOutcome{Complete: true}
	if item.OrderID != "" {
		if err := item.Transition(domain.StageFinishing, domain.CommitmentInProcess, sc.Now); err != nil {
			return nil, err
		}
		outcome.Actions = append(outcome.Actions, CreateRequestAction(CreateRequestCommand{
			Type:            domain.RequestTypeFinishing,
			ItemID:          item.ID,
			OrderID:         item.OrderID,
			ParentRequestID: sc.Request.ID,
			CreatedBy:       sc.OperatorID,
		}))
	} else if err := item.Transition(domain.StageStock, domain.CommitmentUncommitted, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	outcome.Changes = map[string]string{
		"binId": bin.ID,
		"item":  string(item.Stage) + "/" + string(item.Commitment),
	}
	return outcome, nil
}
