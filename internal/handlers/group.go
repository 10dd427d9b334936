package handlers

import (
	"campushub/server/internal/apperr"
	"campushub/server/internal/middleware"
	"campushub/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateGroupRequest represents create group request body
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest represents add member request body
type AddMemberRequest struct {
	UserID string `json:"userId"`
}

// groupDetail is a group with an always present member list
type groupDetail struct {
	models.GroupSummary
	Members []string `json:"members"`
}

func detail(g *models.Group) groupDetail {
	members := g.Members
	if members == nil {
		members = []string{}
	}
	return groupDetail{GroupSummary: g.Summary(), Members: members}
}

// CreateGroup creates a new group with the caller as its first member
func (h *Handlers) CreateGroup(c *fiber.Ctx) error {
	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}

	group, err := h.chat.CreateGroup(c.UserContext(), middleware.GetUserID(c), req.Name)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, detail(group))
}

// GetGroups returns the groups visible to the caller, default group first
func (h *Handlers) GetGroups(c *fiber.Ctx) error {
	groups, err := h.chat.ListGroups(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return err
	}

	summaries := make([]models.GroupSummary, 0, len(groups))
	for i := range groups {
		summaries = append(summaries, groups[i].Summary())
	}
	return ok(c, fiber.StatusOK, summaries)
}

// GetGroupDetails returns one group with its members
func (h *Handlers) GetGroupDetails(c *fiber.Ctx) error {
	group, err := h.chat.GetGroup(c.UserContext(), middleware.GetUserID(c), c.Params("groupId"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, detail(group))
}

// AddGroupMember adds a user to a group. Adding an existing member is not an error.
func (h *Handlers) AddGroupMember(c *fiber.Ctx) error {
	var req AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}

	group, added, err := h.chat.AddMember(c.UserContext(), middleware.GetUserID(c), c.Params("groupId"), req.UserID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"group": detail(group),
		"added": added,
	})
}
