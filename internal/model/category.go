package model

import "fmt"

// Category is the top-level classification of a receipt.
type Category string

// Categories, a closed enumeration.
const (
	CategoryExpense       Category = "EXPENSE"
	CategoryIncome        Category = "INCOME"
	CategoryTravel        Category = "TRAVEL"
	CategoryOffice        Category = "OFFICE"
	CategoryCommunication Category = "COMMUNICATION"
	CategoryOther         Category = "OTHER"
)

var categoryCodes = map[Category]string{
	CategoryExpense:       "EXP",
	CategoryIncome:        "INC",
	CategoryTravel:        "TRV",
	CategoryOffice:        "OFC",
	CategoryCommunication: "COM",
	CategoryOther:         "OTH",
}

// AllCategories returns the categories in display order.
func AllCategories() []Category {
	return []Category{
		CategoryExpense, CategoryIncome, CategoryTravel,
		CategoryOffice, CategoryCommunication, CategoryOther,
	}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryCodes[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Code returns the short code used in archive numbers.
func (c Category) Code() string {
	return categoryCodes[c]
}

// SubCategory refines a category.
type SubCategory string

// Sub-categories, a closed enumeration.
const (
	SubCategoryMeal     SubCategory = "MEAL"
	SubCategoryTaxi     SubCategory = "TAXI"
	SubCategoryTrain    SubCategory = "TRAIN"
	SubCategoryFlight   SubCategory = "FLIGHT"
	SubCategoryHotel    SubCategory = "HOTEL"
	SubCategoryFuel     SubCategory = "FUEL"
	SubCategoryParking  SubCategory = "PARKING"
	SubCategorySupplies SubCategory = "SUPPLIES"
	SubCategoryPhone    SubCategory = "PHONE"
	SubCategoryOther    SubCategory = "OTHER"
)

// AllSubCategories returns the sub-categories in display order.
func AllSubCategories() []SubCategory {
	return []SubCategory{
		SubCategoryMeal, SubCategoryTaxi, SubCategoryTrain, SubCategoryFlight,
		SubCategoryHotel, SubCategoryFuel, SubCategoryParking, SubCategorySupplies,
		SubCategoryPhone, SubCategoryOther,
	}
}

// ParseSubCategory validates a sub-category name.
func ParseSubCategory(s string) (SubCategory, error) {
	for _, sc := range AllSubCategories() {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown sub-category %q", s)
}
