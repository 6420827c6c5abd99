package models

// Product is only used to display the name and unit price of an order line.
type Product struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	ImagePath string `json:"imagePath"`
}
