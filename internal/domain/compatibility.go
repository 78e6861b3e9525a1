package domain

// donorsByRecipient is the ABO/Rh compatibility matrix keyed by recipient
// type: the value lists every donor type medically safe to transfuse into
// that recipient. O- is the universal donor, AB+ the universal recipient.
var donorsByRecipient = map[BloodType][]BloodType{
	BloodONegative:  {BloodONegative},
	BloodOPositive:  {BloodONegative, BloodOPositive},
	BloodANegative:  {BloodONegative, BloodANegative},
	BloodAPositive:  {BloodONegative, BloodOPositive, BloodANegative, BloodAPositive},
	BloodBNegative:  {BloodONegative, BloodBNegative},
	BloodBPositive:  {BloodONegative, BloodOPositive, BloodBNegative, BloodBPositive},
	BloodABNegative: {BloodONegative, BloodANegative, BloodBNegative, BloodABNegative},
	BloodABPositive: {BloodONegative, BloodOPositive, BloodANegative, BloodAPositive, BloodBNegative, BloodBPositive, BloodABNegative, BloodABPositive},
}

// recipientsByDonor is the inverse of donorsByRecipient, derived once at
// package init so the two tables cannot drift.
var recipientsByDonor = invert(donorsByRecipient)

func invert(table map[BloodType][]BloodType) map[BloodType][]BloodType {
	inv := make(map[BloodType][]BloodType, len(table))
	// Iterate in BloodTypes order so the derived lists are deterministic.
	for _, recipient := range BloodTypes {
		for _, donor := range table[recipient] {
			inv[donor] = append(inv[donor], recipient)
		}
	}
	return inv
}

// DonorTypesFor returns the blood types that may donate to a recipient of
// the given type. Unknown types yield an empty list.
func DonorTypesFor(recipient BloodType) []BloodType {
	return append([]BloodType(nil), donorsByRecipient[recipient]...)
}

// RecipientTypesFor returns the blood types a donor of the given type may
// serve. Unknown types yield an empty list.
func RecipientTypesFor(donor BloodType) []BloodType {
	return append([]BloodType(nil), recipientsByDonor[donor]...)
}

// Compatible reports whether a donor of type d may donate to a recipient of
// type r.
func Compatible(d, r BloodType) bool {
	for _, t := range donorsByRecipient[r] {
		if t == d {
			return true
		}
	}
	return false
}
