package app

import (
	"context"
	"fmt"
	"strings"

	"autoeden/pkg/domain"
)

const describeSystemPrompt = "You write short, factual vehicle listing descriptions " +
	"for an online marketplace. Two paragraphs at most, no pricing claims, " +
	"no invented features."

const priceSystemPrompt = "You estimate a fair asking price range in USD for used " +
	"vehicles on the Zimbabwean market. Answer with a price range and two " +
	"sentences of reasoning. Be explicit that it is an estimate."

const chatSystemPrompt = "You are the Auto Eden marketplace assistant. Answer " +
	"questions about buying, selling, listing verification and quotes. Keep " +
	"answers short and do not invent listings or prices."

// AssistantEnabled reports whether a text generator is configured.
func (a *App) AssistantEnabled() bool {
	return a.generator != nil
}

// DescribeVehicle drafts a listing description from the vehicle's facts.
// The owner reviews and edits the text before it is saved.
func (a *App) DescribeVehicle(ctx context.Context, actor domain.User, vehicleID string) (string, error) {
	if a.generator == nil {
		return "", ErrDisabled
	}
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return "", fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return "", ErrForbidden
	}

	facts := []string{
		fmt.Sprintf("%d %s %s", vehicle.Year, vehicle.Make, vehicle.Model),
		fmt.Sprintf("%d km", vehicle.Mileage),
	}
	if vehicle.FuelType != "" {
		facts = append(facts, vehicle.FuelType)
	}
	if vehicle.Transmission != "" {
		facts = append(facts, vehicle.Transmission+" transmission")
	}
	if vehicle.BodyType != "" {
		facts = append(facts, vehicle.BodyType)
	}
	if vehicle.Location != "" {
		facts = append(facts, "located in "+vehicle.Location)
	}

	prompt := "Write a listing description for this vehicle: " + strings.Join(facts, ", ") + "."
	text, err := a.generator.GenerateText(ctx, describeSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generate description: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// SuggestPrice estimates an asking price range for the owner's vehicle.
// The estimate is advisory text, never written back to the listing.
func (a *App) SuggestPrice(ctx context.Context, actor domain.User, vehicleID string) (string, error) {
	if a.generator == nil {
		return "", ErrDisabled
	}
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return "", fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return "", ErrForbidden
	}

	prompt := fmt.Sprintf("Estimate an asking price for a %d %s %s with %d km",
		vehicle.Year, vehicle.Make, vehicle.Model, vehicle.Mileage)
	if vehicle.FuelType != "" {
		prompt += ", " + vehicle.FuelType
	}
	if vehicle.Location != "" {
		prompt += ", located in " + vehicle.Location
	}
	prompt += "."
	text, err := a.generator.GenerateText(ctx, priceSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generate price suggestion: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Chat answers a free-form marketplace question.
func (a *App) Chat(ctx context.Context, message string) (string, error) {
	if a.generator == nil {
		return "", ErrDisabled
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", domain.FieldErrors{"message": "message is required"}
	}
	text, err := a.generator.GenerateText(ctx, chatSystemPrompt, message)
	if err != nil {
		return "", fmt.Errorf("generate chat reply: %w", err)
	}
	return strings.TrimSpace(text), nil
}
