package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/middleware"
)

// fulfillmentStarter starts the durable fulfillment workflow for an order.
type fulfillmentStarter func(ctx context.Context, orderID, operatorID string) (workflowID, runID string, err error)

type handlers struct {
	engine      *application.Engine
	coordinator *application.Coordinator
	fulfillment fulfillmentStarter
}

func (h *handlers) register(api *gin.RouterGroup) {
	orders := api.Group("/orders")
	{
		orders.GET("/:orderId", middleware.WrapHandler(h.getOrder))
		orders.POST("/:orderId/process", middleware.WrapHandler(h.processOrder))
		if h.fulfillment != nil {
			orders.POST("/:orderId/fulfillment", middleware.WrapHandler(h.startFulfillment))
		}
	}

	requests := api.Group("/requests")
	{
		requests.POST("", middleware.WrapHandler(h.createRequest))
		requests.GET("/:requestId", middleware.WrapHandler(h.getRequest))
		requests.GET("/:requestId/children", middleware.WrapHandler(h.getChildren))
		requests.POST("/:requestId/steps", middleware.WrapHandler(h.advanceRequest))
		requests.POST("/:requestId/problems", middleware.WrapHandler(h.reportProblem))
		requests.POST("/:requestId/retry", middleware.WrapHandler(h.retryRequest))
	}

	bins := api.Group("/bins")
	{
		bins.POST("/allocate", middleware.WrapHandler(h.allocateBin))
		bins.POST("/:binId/release", middleware.WrapHandler(h.releaseBin))
		bins.POST("/:binId/process", middleware.WrapHandler(h.processBin))
	}

	api.GET("/skus/:sku/match", middleware.WrapHandler(h.matchSKU))
	api.POST("/actions", middleware.WrapHandler(h.executeNextActions))
}

func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return errors.ErrInvalidRequest("invalid request body").Wrap(err)
	}
	return nil
}

func (h *handlers) getOrder(c *gin.Context) error {
	order, err := h.coordinator.Order(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		return err
	}
	middleware.RespondOK(c, order)
	return nil
}

func (h *handlers) processOrder(c *gin.Context) error {
	result, err := h.coordinator.ProcessOrder(c.Request.Context(), application.ProcessOrderCommand{
		OrderID:    c.Param("orderId"),
		OperatorID: middleware.GetOperatorID(c),
	})
	if err != nil {
		return err
	}
	middleware.RespondOK(c, result)
	return nil
}

func (h *handlers) startFulfillment(c *gin.Context) error {
	orderID := c.Param("orderId")
	workflowID, runID, err := h.fulfillment(c.Request.Context(), orderID, middleware.GetOperatorID(c))
	if err != nil {
		return errors.ErrUnavailable("failed to start fulfillment workflow").Wrap(err)
	}
	c.JSON(http.StatusAccepted, middleware.Envelope{Success: true, Data: gin.H{
		"orderId":    orderID,
		"workflowId": workflowID,
		"runId":      runID,
	}})
	return nil
}

func (h *handlers) createRequest(c *gin.Context) error {
	var cmd application.CreateRequestCommand
	if err := bindJSON(c, &cmd); err != nil {
		return err
	}
	cmd.CreatedBy = middleware.GetOperatorID(c)

	req, err := h.engine.Create(c.Request.Context(), cmd)
	if err != nil {
		return err
	}
	middleware.RespondCreated(c, req)
	return nil
}

func (h *handlers) getRequest(c *gin.Context) error {
	req, err := h.engine.Get(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		return err
	}
	middleware.RespondOK(c, req)
	return nil
}

func (h *handlers) getChildren(c *gin.Context) error {
	children, err := h.engine.Children(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		return err
	}
	middleware.RespondOK(c, children)
	return nil
}

type advanceBody struct {
	Type    domain.RequestType `json:"type"`
	Step    domain.Step        `json:"step"`
	Payload json.RawMessage    `json:"payload"`
}

func (h *handlers) advanceRequest(c *gin.Context) error {
	var body advanceBody
	if err := bindJSON(c, &body); err != nil {
		return err
	}
	if body.Step == domain.StepNone {
		return errors.ErrInvalidRequest("step is required")
	}

	result, err := h.engine.Advance(c.Request.Context(), application.StepCommand{
		RequestID:  c.Param("requestId"),
		Type:       body.Type,
		Step:       body.Step,
		Payload:    body.Payload,
		OperatorID: middleware.GetOperatorID(c),
	})
	if err != nil {
		return err
	}
	middleware.RespondOK(c, result)
	return nil
}

func (h *handlers) reportProblem(c *gin.Context) error {
	var cmd application.ReportProblemCommand
	if err := bindJSON(c, &cmd); err != nil {
		return err
	}
	cmd.RequestID = c.Param("requestId")
	cmd.OperatorID = middleware.GetOperatorID(c)

	result, err := h.engine.ReportProblem(c.Request.Context(), cmd)
	if err != nil {
		return err
	}
	middleware.RespondCreated(c, result)
	return nil
}

func (h *handlers) retryRequest(c *gin.Context) error {
	req, err := h.engine.Retry(c.Request.Context(), application.RetryRequestCommand{
		RequestID:  c.Param("requestId"),
		OperatorID: middleware.GetOperatorID(c),
	})
	if err != nil {
		return err
	}
	middleware.RespondOK(c, req)
	return nil
}

func (h *handlers) allocateBin(c *gin.Context) error {
	var cmd application.AllocateBinCommand
	if err := bindJSON(c, &cmd); err != nil {
		return err
	}

	alloc, err := h.coordinator.AllocateBin(c.Request.Context(), cmd)
	if err != nil {
		return err
	}
	middleware.RespondOK(c, alloc)
	return nil
}

func (h *handlers) releaseBin(c *gin.Context) error {
	var cmd application.ReleaseBinCommand
	if err := bindJSON(c, &cmd); err != nil {
		return err
	}
	cmd.BinID = c.Param("binId")

	if err := h.coordinator.ReleaseBin(c.Request.Context(), cmd); err != nil {
		return err
	}
	middleware.RespondOK(c, gin.H{"binId": cmd.BinID, "released": cmd.Quantity})
	return nil
}

func (h *handlers) processBin(c *gin.Context) error {
	result, err := h.engine.ProcessBin(c.Request.Context(), application.ProcessBinCommand{
		BinID:      c.Param("binId"),
		OperatorID: middleware.GetOperatorID(c),
	})
	if err != nil {
		return err
	}
	middleware.RespondOK(c, result)
	return nil
}

func (h *handlers) matchSKU(c *gin.Context) error {
	uncommittedOnly, _ := strconv.ParseBool(c.DefaultQuery("uncommittedOnly", "true"))
	match, err := h.coordinator.MatchSKU(c.Request.Context(), application.MatchSKUQuery{
		SKU:             c.Param("sku"),
		UncommittedOnly: uncommittedOnly,
	})
	if err != nil {
		return err
	}
	middleware.RespondOK(c, match)
	return nil
}

// actionBody is one next action. Exactly one of Create and OrderID is set.
type actionBody struct {
	Create      *application.CreateRequestCommand `json:"create,omitempty"`
	OrderID     string                            `json:"orderId,omitempty"`
	OrderStatus domain.OrderStatus                `json:"orderStatus,omitempty"`
}

func (h *handlers) executeNextActions(c *gin.Context) error {
	var body struct {
		Actions []actionBody `json:"actions"`
	}
	if err := bindJSON(c, &body); err != nil {
		return err
	}
	if len(body.Actions) == 0 {
		return errors.ErrInvalidRequest("at least one action is required")
	}

	actions := make([]application.NextAction, 0, len(body.Actions))
	for i, a := range body.Actions {
		switch {
		case a.Create != nil && a.OrderID == "":
			actions = append(actions, application.CreateRequestAction(*a.Create))
		case a.Create == nil && a.OrderID != "" && a.OrderStatus != "":
			actions = append(actions, application.AdvanceOrderAction(a.OrderID, a.OrderStatus))
		default:
			return errors.ErrInvalidRequest("action must either create a request or advance an order").
				WithDetail("index", strconv.Itoa(i))
		}
	}

	result, err := h.coordinator.ExecuteNextActions(c.Request.Context(), actions, middleware.GetOperatorID(c))
	if err != nil {
		return err
	}
	middleware.RespondOK(c, result)
	return nil
}
