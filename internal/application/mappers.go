package application

import "github.com/wms-platform/production-service/internal/domain"

// ToRequestDTO converts a domain request to a DTO
func ToRequestDTO(r *domain.Request) RequestDTO {
	return RequestDTO{
		ID:              r.ID,
		Type:            string(r.Type),
		Status:          string(r.Status),
		CurrentStep:     string(r.CurrentStep),
		ItemID:          r.ItemID,
		OrderID:         r.OrderID,
		BatchID:         r.BatchID,
		MaterialID:      r.MaterialID,
		BinID:           r.BinID,
		ParentRequestID: r.ParentRequestID,
		Metadata:        r.Metadata,
		Annotations:     r.Annotations,
		Timeline:        r.Timeline,
		Failure:         r.Failure,
		RetryCount:      r.RetryCount,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		CompletedAt:     r.CompletedAt,
	}
}

// ToRequestDTOs converts domain requests to DTOs
func ToRequestDTOs(requests []*domain.Request) []RequestDTO {
	dtos := make([]RequestDTO, 0, len(requests))
	for _, r := range requests {
		dtos = append(dtos, ToRequestDTO(r))
	}
	return dtos
}

// ToProblemDTO converts a domain problem to a DTO
func ToProblemDTO(p *domain.Problem) *ProblemDTO {
	if p == nil {
		return nil
	}
	return &ProblemDTO{
		ID:              p.ID,
		ItemID:          p.ItemID,
		RequestID:       p.RequestID,
		Category:        string(p.Category),
		Severity:        string(p.Severity),
		DiscoveredStage: string(p.DiscoveredStage),
		Description:     p.Description,
		Resolution:      string(p.Resolution),
		ReportedBy:      p.ReportedBy,
		ReportedAt:      p.ReportedAt,
		ResolvedAt:      p.ResolvedAt,
	}
}

// ToOrderDTO converts a domain order to a DTO
func ToOrderDTO(o *domain.Order) OrderDTO {
	dto := OrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		Shipment:    o.Shipment,
		UnitCount:   o.UnitCount(),
		UpdatedAt:   o.UpdatedAt,
	}
	for _, item := range o.Items {
		for _, a := range item.Assignments {
			dto.Assignments = append(dto.Assignments, AssignmentDTO{
				OrderItemID:     item.ID,
				TargetSKU:       item.SKU,
				InventoryItemID: a.InventoryItemID,
				MatchedSKU:      a.MatchedSKU,
				Tier:            a.Tier.String(),
				Substitutions:   a.Substitutions,
				Adjustment:      a.Adjustment,
				BinID:           a.BinID,
			})
		}
	}
	return dto
}

// ToMatchDTO converts a match result to a DTO
func ToMatchDTO(target string, m *MatchResult) MatchDTO {
	return MatchDTO{
		TargetSKU:     target,
		ItemID:        m.Item.ID,
		MatchedSKU:    m.Item.SKU,
		Tier:          m.Tier.String(),
		Score:         int(m.Tier),
		Phase:         string(m.Phase),
		Substitutions: m.Substitutions,
		Adjustment:    m.Adjustment,
	}
}
