package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/face-attend/internal/embedclient"
	"github.com/example/face-attend/internal/repository"
	"github.com/example/face-attend/internal/usecase"
)

// MaxUploadSize caps the size of an uploaded photo.
const MaxUploadSize = 8 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// RegisterRoutes wires the HTML pages and the JSON API to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.FaceUseCase) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerPages(router, uc)
	registerAPI(router, uc)
}

func registerPages(router *gin.Engine, uc *usecase.FaceUseCase) {
	router.GET("/", func(c *gin.Context) {
		users, err := uc.ListUsers(c.Request.Context())
		if err != nil {
			c.HTML(http.StatusInternalServerError, "index.html", gin.H{"Error": "failed to load users", "Count": 0})
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{"Users": users, "Count": len(users)})
	})

	router.GET("/reg", func(c *gin.Context) {
		c.HTML(http.StatusOK, "register.html", gin.H{})
	})

	router.POST("/reg", func(c *gin.Context) {
		name := c.PostForm("name")
		email := c.PostForm("email")
		image, message := formImage(c, "image")
		if message == "" {
			if name == "" || email == "" {
				message = "Name and email are required"
			} else {
				result, err := uc.Enroll(c.Request.Context(), name, email, image)
				message = enrollMessage(result, err)
			}
		}
		c.HTML(http.StatusOK, "register.html", gin.H{"Res": message})
	})

	router.GET("/recog", func(c *gin.Context) {
		c.HTML(http.StatusOK, "recognition.html", gin.H{})
	})

	router.POST("/recog", func(c *gin.Context) {
		image, message := formImage(c, "image")
		var result *usecase.IdentifyResult
		if message == "" {
			var err error
			result, err = uc.Identify(c.Request.Context(), image)
			if err != nil {
				message = "Recognition failed, try again"
				result = nil
			}
		}
		data := gin.H{}
		if message != "" {
			data["Res"] = message
		}
		if result != nil {
			data["Outcome"] = string(result.Outcome)
			if result.User != nil {
				data["User"] = result.User
			}
		}
		c.HTML(http.StatusOK, "recognition.html", data)
	})

	router.GET("/images/:id", func(c *gin.Context) {
		data, err := uc.Image(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.String(http.StatusNotFound, "image not found")
			return
		}
		c.Data(http.StatusOK, embedclient.DetectMIMEType(data), data)
	})

	router.GET("/delete/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := uc.RemoveUser(c.Request.Context(), id); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			c.String(http.StatusInternalServerError, "failed to delete user")
			return
		}
		c.Redirect(http.StatusFound, "/")
	})

	router.GET("/update/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		user, err := uc.GetUser(c.Request.Context(), id)
		if err != nil {
			c.String(http.StatusNotFound, "user not found")
			return
		}
		c.HTML(http.StatusOK, "update.html", gin.H{"User": user})
	})

	router.POST("/update/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		name := c.PostForm("name")
		email := c.PostForm("email")
		if name == "" || email == "" {
			c.String(http.StatusBadRequest, "name and email are required")
			return
		}
		// profile updates never touch the stored face signature; changing
		// the face means delete plus re-register
		if err := uc.UpdateProfile(c.Request.Context(), id, name, email); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, repository.ErrUserNotFound) {
				status = http.StatusNotFound
			} else if errors.Is(err, repository.ErrDuplicateUser) {
				status = http.StatusConflict
			}
			c.String(status, "failed to update user")
			return
		}
		c.Redirect(http.StatusFound, "/")
	})
}

func registerAPI(router *gin.Engine, uc *usecase.FaceUseCase) {
	router.POST("/api/register", func(c *gin.Context) {
		name := c.PostForm("name")
		email := c.PostForm("email")
		if name == "" || email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
			return
		}
		image, ok := apiImage(c, "image")
		if !ok {
			return
		}

		result, err := uc.Enroll(c.Request.Context(), name, email, image)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.POST("/api/identify", func(c *gin.Context) {
		image, ok := apiImage(c, "image")
		if !ok {
			return
		}

		result, err := uc.Identify(c.Request.Context(), image)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identification failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.GET("/api/result/:id", func(c *gin.Context) {
		probeID := c.Param("id")
		result, err := uc.GetResult(c.Request.Context(), probeID)
		switch {
		case errors.Is(err, usecase.ErrResultPending):
			c.JSON(http.StatusAccepted, gin.H{"probe_id": probeID, "status": "processing"})
		case errors.Is(err, usecase.ErrResultUnknown):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
		default:
			c.JSON(http.StatusOK, result)
		}
	})

	router.GET("/api/users", func(c *gin.Context) {
		users, err := uc.ListUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
	})
}

// apiImage extracts and validates the uploaded image for JSON endpoints,
// writing the error response itself when validation fails.
func apiImage(c *gin.Context, field string) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, false
	}
	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}
	if contentType := file.Header.Get("Content-Type"); !allowedImageTypes[contentType] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return nil, false
	}
	return data, true
}

// formImage extracts the uploaded image for HTML form endpoints, returning a
// human-readable message instead of writing a response on failure.
func formImage(c *gin.Context, field string) ([]byte, string) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, "A photo is required"
	}
	if file.Size > MaxUploadSize {
		return nil, "Photo is too large"
	}
	if contentType := file.Header.Get("Content-Type"); !allowedImageTypes[contentType] {
		return nil, "Unsupported photo format"
	}

	src, err := file.Open()
	if err != nil {
		return nil, "Could not read the photo"
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "Could not read the photo"
	}
	return data, ""
}

func enrollMessage(result *usecase.EnrollResult, err error) string {
	if err != nil {
		return "Registration failed, try again"
	}
	switch result.Outcome {
	case usecase.OutcomeEnrolled:
		return "Registration successful"
	case usecase.OutcomeDuplicateUser:
		return "User already exists"
	case usecase.OutcomeNoFace:
		return "No face detected in the photo"
	case usecase.OutcomeMultipleFaces:
		return "The photo must contain exactly one face"
	default:
		return "Registration failed, try again"
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
