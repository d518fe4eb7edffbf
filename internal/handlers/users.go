package handlers

import (
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

type CreateUnitRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateDepartmentRequest struct {
	Name   string `json:"name" binding:"required"`
	UnitID uint   `json:"unit_id" binding:"required"`
}

func ListUsers(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := users.ListUsers(c.Request.Context(), services.UserFilter{
			DepartmentID: queryUint(c, "department_id"),
			UnitID:       queryUint(c, "unit_id"),
			Query:        c.Query("q"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, list)
	}
}

func CreateUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateUserInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		user, err := users.CreateUser(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, user)
	}
}

func ListUnits(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := users.ListUnits(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, units)
	}
}

func CreateUnit(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUnitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		unit, err := users.CreateUnit(c.Request.Context(), req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, unit)
	}
}

func ListDepartments(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		departments, err := users.ListDepartments(c.Request.Context(), queryUint(c, "unit_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, departments)
	}
}

func CreateDepartment(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateDepartmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		department, err := users.CreateDepartment(c.Request.Context(), req.Name, req.UnitID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, department)
	}
}
