package service

import (
	"fmt"

	"kmbp.app/ratingbot/pkg/apperror"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ratingDeltas maps a 1..5 rating to its score effect. 3 is neutral.
var ratingDeltas = map[int]int{
	1: -5,
	2: -2,
	3: 0,
	4: 2,
	5: 5,
}

func RatingDelta(rating int) (int, error) {
	delta, ok := ratingDeltas[rating]
	if !ok {
		return 0, fmt.Errorf("rating %d: %w", rating, apperror.Invalid(fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating)))
	}
	return delta, nil
}

// ReviewDelta is the score adjustment for replacing oldRating with newRating.
func ReviewDelta(oldRating, newRating int) (int, error) {
	oldDelta, err := RatingDelta(oldRating)
	if err != nil {
		return 0, err
	}
	newDelta, err := RatingDelta(newRating)
	if err != nil {
		return 0, err
	}
	return newDelta - oldDelta, nil
}
