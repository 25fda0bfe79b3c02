package model

// Role is carried in the access token's "role" claim.
type Role string

const (
    RoleCustomer Role = "CUSTOMER"
    RoleArtist   Role = "ARTIST"
    RoleAdmin    Role = "ADMIN"
)

// Service categories a booking can be made for.
const (
    CategoryMehndi      = "mehndi"
    CategoryMakeup      = "makeup"
    CategoryPhotography = "photography"
)

// ValidCategory reports whether c is a bookable service category.
func ValidCategory(c string) bool {
    switch c {
    case CategoryMehndi, CategoryMakeup, CategoryPhotography:
        return true
    }
    return false
}
