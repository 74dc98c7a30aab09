package fixtures

import "github.com/opensource-finance/talon/internal/domain"

// Merchant catalog by category. Duplicated entries weight the pick
// toward the platform's anchor merchants.
var merchants = map[string][]string{
	domain.CategoryFashion:     {"Myntra", "Myntra", "Ajio", "Nykaa Fashion", "Max Fashion", "H&M", "Zara"},
	domain.CategoryTravel:      {"MakeMyTrip", "MakeMyTrip", "GoIbibo", "EaseMyTrip", "OYO", "Cleartrip"},
	domain.CategoryFood:        {"Zomato", "Zomato", "Swiggy", "BigBasket", "Blinkit", "Amazon Fresh"},
	domain.CategoryElectronics: {"Boat", "Noise", "Croma", "Croma", "Reliance Digital", "Samsung Store", "OnePlus Store"},
	domain.CategoryHealth:      {"Apollo Pharmacy", "Netmeds", "1mg", "HealthKart", "PharmEasy"},
}

var subcategories = map[string][]string{
	domain.CategoryFashion:     {"Casual Wear", "Ethnic Wear", "Footwear", "Accessories", "Sports Wear"},
	domain.CategoryTravel:      {"Domestic Flight", "Hotel Booking", "Bus Ticket", "Holiday Package", "Train Ticket"},
	domain.CategoryFood:        {"Restaurant Delivery", "Grocery", "Quick Commerce", "Meal Kit"},
	domain.CategoryElectronics: {"Earphones", "Smartwatch", "Phone Accessories", "Laptop", "Home Appliances"},
	domain.CategoryHealth:      {"Prescription Medicine", "Vitamins & Supplements", "Personal Care", "OTC Medicine"},
}

var devices = []string{"mobile", "mobile", "mobile", "mobile", "desktop", "tablet"}

// Relative GMV weight per category when splitting a monthly budget.
// Travel tickets dwarf grocery orders.
var categoryWeight = map[string]float64{
	domain.CategoryFashion:     2.0,
	domain.CategoryTravel:      6.0,
	domain.CategoryFood:        0.9,
	domain.CategoryElectronics: 4.5,
	domain.CategoryHealth:      1.3,
}
