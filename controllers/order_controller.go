package controllers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderController covers the minimal order-creation path that feeds the
// payment core. Catalog and cart live elsewhere; items arrive as snapshots.
type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

type createOrderItem struct {
	ProductID uint            `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price" binding:"required"`
}

type createOrderRequest struct {
	Items            []createOrderItem `json:"items" binding:"required,min=1,dive"`
	ShippingAddress  models.JSONMap    `json:"shipping_address" binding:"required"`
	BillingAddress   models.JSONMap    `json:"billing_address" binding:"required"`
	ShippingMethodID uint              `json:"shipping_method_id" binding:"required"`
	TaxAmount        decimal.Decimal   `json:"tax_amount"`
	Notes            string            `json:"notes"`
}

// CreateOrder handles POST /v1/orders/
func (oc *OrderController) CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Requête invalide", bindingFieldErrors(err))
		return
	}

	var method models.ShippingMethod
	if err := oc.DB.Where("id = ? AND is_active = ?", req.ShippingMethodID, true).First(&method).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.BadRequest(c, "Méthode de livraison invalide", nil)
			return
		}
		utils.InternalServerError(c, "Erreur interne", nil)
		return
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			utils.BadRequest(c, "Le prix d'un article ne peut pas être négatif", nil)
			return
		}
		line := models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		subtotal = subtotal.Add(line.TotalPrice())
		items = append(items, line)
	}
	if req.TaxAmount.IsNegative() {
		utils.BadRequest(c, "Le montant de taxe ne peut pas être négatif", nil)
		return
	}

	methodID := method.ID
	order := models.Order{
		UserID:           user.ID,
		Status:           models.OrderStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		ShippingAddress:  req.ShippingAddress,
		BillingAddress:   req.BillingAddress,
		ShippingMethodID: &methodID,
		ShippingPrice:    method.Price,
		Subtotal:         subtotal,
		TaxAmount:        req.TaxAmount,
		// total = subtotal + shipping + tax, fixed at creation
		Total: subtotal.Add(method.Price).Add(req.TaxAmount),
		Notes: req.Notes,
		Items: items,
	}

	if err := oc.DB.Create(&order).Error; err != nil {
		utils.LogError("Failed to create order for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Erreur lors de la création de la commande", nil)
		return
	}

	utils.LogInfo("Order %s created for user %d, total %s XOF", order.OrderNumber, user.ID, order.Total)
	utils.Created(c, "Commande créée avec succès", gin.H{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total,
	})
}

// GetOrder handles GET /v1/orders/:id/
func (oc *OrderController) GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Identifiant de commande invalide", nil)
		return
	}

	var order models.Order
	if err := oc.DB.Preload("Items").Preload("ShippingMethod").
		Where("id = ? AND user_id = ?", orderID, user.ID).First(&order).Error; err != nil {
		utils.NotFound(c, "Commande non trouvée")
		return
	}

	utils.Success(c, "Commande récupérée", order)
}
