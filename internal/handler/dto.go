package handler

import (
	"time"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

// Prices are rendered as JSON numbers with two-decimal semantics; the exact
// values live in NUMERIC columns and decimal.Decimal internally.

type userResponse struct {
	ID          string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Address     string    `json:"address,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        user.Role `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Address:     u.Address,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserResponses(users []user.User) []userResponse {
	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	return out
}

type categoryResponse struct {
	ID          int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func toCategoryResponse(c *catalog.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

type variantResponse struct {
	ID            int64   `json:"variant_id"`
	ProductID     int64   `json:"product_id"`
	Color         string  `json:"color"`
	Size          string  `json:"size"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
}

func toVariantResponse(v *catalog.Variant) variantResponse {
	return variantResponse{
		ID:            v.ID,
		ProductID:     v.ProductID,
		Color:         v.Color,
		Size:          v.Size,
		Price:         v.Price.InexactFloat64(),
		StockQuantity: v.StockQuantity,
	}
}

type productResponse struct {
	ID          int64             `json:"product_id"`
	CategoryID  int64             `json:"category_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	BasePrice   float64           `json:"base_price"`
	Material    string            `json:"material,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Variants    []variantResponse `json:"variants"`
}

func toProductResponse(p *catalog.Product) productResponse {
	variants := make([]variantResponse, len(p.Variants))
	for i := range p.Variants {
		variants[i] = toVariantResponse(&p.Variants[i])
	}
	return productResponse{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   p.BasePrice.InexactFloat64(),
		Material:    p.Material,
		Brand:       p.Brand,
		ImageURL:    p.ImageURL,
		Variants:    variants,
	}
}

type orderItemResponse struct {
	ID        int64            `json:"order_item_id"`
	VariantID *int64           `json:"product_variant_id"`
	Quantity  int              `json:"quantity"`
	Price     float64          `json:"price"`
	Variant   *variantResponse `json:"variant,omitempty"`
	Product   *productResponse `json:"product,omitempty"`
}

type orderResponse struct {
	ID         string              `json:"order_id"`
	UserID     string              `json:"user_id"`
	Status     order.Status        `json:"status"`
	TotalPrice float64             `json:"total_price"`
	OrderDate  time.Time           `json:"order_date"`
	Items      []orderItemResponse `json:"items"`
	User       *userResponse       `json:"user,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:        it.ID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		}
		if it.Variant != nil {
			v := toVariantResponse(it.Variant)
			items[i].Variant = &v
		}
		if it.Product != nil {
			p := toProductResponse(it.Product)
			items[i].Product = &p
		}
	}

	resp := orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice.InexactFloat64(),
		OrderDate:  o.OrderDate,
		Items:      items,
	}
	if o.User != nil {
		u := toUserResponse(o.User)
		resp.User = &u
	}
	return resp
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}
