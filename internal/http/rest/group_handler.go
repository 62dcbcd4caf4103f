package rest

import (
	"net/http"
	"strings"

	"github.com/bwise1/outpost/internal/group"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/tracing"
	"github.com/bwise1/outpost/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxImageBytes = 10 << 20

func (api *API) GroupRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)

		r.Method(http.MethodPost, "/", Handler(api.CreateGroup))
		r.Method(http.MethodGet, "/mine", Handler(api.MyGroups))
		r.Method(http.MethodPost, "/join", Handler(api.JoinGroup))

		r.Method(http.MethodGet, "/{groupID}", Handler(api.GetGroup))
		r.Method(http.MethodDelete, "/{groupID}", Handler(api.DeleteGroup))
		r.Method(http.MethodGet, "/{groupID}/members", Handler(api.GroupMembers))
		r.Method(http.MethodDelete, "/{groupID}/leave", Handler(api.LeaveGroup))
		r.Method(http.MethodPost, "/{groupID}/activity", Handler(api.GroupActivity))

		r.Method(http.MethodGet, "/{groupID}/messages", Handler(api.ListGroupMessages))
		r.Method(http.MethodPost, "/{groupID}/messages", Handler(api.SendGroupMessage))
		r.Method(http.MethodPost, "/{groupID}/messages/{messageID}/like", Handler(api.LikeGroupMessage))
		r.Method(http.MethodPost, "/{groupID}/images", Handler(api.SendGroupImage))

		r.Method(http.MethodPost, "/{groupID}/locations", Handler(api.ShareGroupLocation))
		r.Method(http.MethodGet, "/{groupID}/locations", Handler(api.GroupLocations))

		r.Method(http.MethodPost, "/{groupID}/kick", Handler(api.KickMember))
		r.Method(http.MethodPost, "/{groupID}/ban", Handler(api.BanMember))
		r.Method(http.MethodPost, "/{groupID}/unban", Handler(api.UnbanMember))
		r.Method(http.MethodGet, "/{groupID}/banned", Handler(api.BannedMembers))
		r.Method(http.MethodPost, "/{groupID}/promote", Handler(api.ChangeMemberRole))
	})

	return mux
}

// groupRequest resolves the tracing context, the caller and the groupID path
// parameter. A non-nil response means the request was rejected.
func groupRequest(r *http.Request) (tracing.Context, uuid.UUID, uuid.UUID, *ServerResponse) {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return tc, uuid.Nil, uuid.Nil, respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		return tc, uuid.Nil, uuid.Nil, respondWithError(fieldErrors{"groupID": "uuid"}, "invalid group id", values.BadRequestBody, &tc)
	}
	return tc, userID, groupID, nil
}

func groupResponse(status, message string, data interface{}) *ServerResponse {
	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       data,
	}
}

func (api *API) CreateGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req model.CreateGroupRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	g, status, message, err := api.CreateGroupHelper(r.Context(), userID, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(status, message, map[string]interface{}{"group": g})
}

func (api *API) MyGroups(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	groups, err := api.Deps.Groups.Mine(r.Context(), userID)
	if err != nil {
		return respondWithError(err, "Failed to get groups", values.Error, &tc)
	}
	return groupResponse(values.Success, "Groups retrieved successfully", groups)
}

func (api *API) JoinGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req model.JoinGroupRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	g, status, message, err := api.JoinGroupHelper(r.Context(), userID, req.InviteCode)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(status, message, map[string]interface{}{"group": g})
}

func (api *API) GetGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	g, err := api.Deps.Groups.Get(r.Context(), groupID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to get group")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Group retrieved successfully", map[string]interface{}{"group": g})
}

func (api *API) DeleteGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	if err := api.Deps.Groups.Delete(r.Context(), groupID, userID); err != nil {
		status, message := groupFailure(err, "Failed to delete group")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Group deleted successfully", nil)
}

func (api *API) GroupMembers(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	members, err := api.Deps.Groups.Members(r.Context(), groupID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to get members")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Members retrieved successfully", members)
}

func (api *API) LeaveGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	res, status, message, err := api.LeaveGroupHelper(r.Context(), groupID, userID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(status, message, res)
}

func (api *API) GroupActivity(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	if err := api.Deps.Groups.Touch(r.Context(), groupID, userID); err != nil {
		status, message := groupFailure(err, "Failed to update activity")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Activity updated", nil)
}

func (api *API) ListGroupMessages(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	params := model.ListMessagesParams{Limit: group.DefaultMessageLimit}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	messages, err := api.Deps.Groups.ListMessages(r.Context(), groupID, userID, params.Before, params.Limit)
	if err != nil {
		status, message := groupFailure(err, "Failed to get messages")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Messages retrieved successfully", messages)
}

func (api *API) SendGroupMessage(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	var req model.SendMessageRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	msg, err := api.Deps.Groups.SendMessage(r.Context(), groupID, userID, req)
	if err != nil {
		status, message := groupFailure(err, "Failed to send message")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Created, "Message sent successfully", msg)
}

func (api *API) SendGroupImage(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return respondWithError(err, "invalid multipart form", values.BadRequestBody, &tc)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return respondWithError(fieldErrors{"image": "required"}, "image file is required", values.BadRequestBody, &tc)
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		return respondWithError(fieldErrors{"image": "max=10MB"}, "image is too large", values.BadRequestBody, &tc)
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return respondWithError(fieldErrors{"image": "image"}, "only image uploads are allowed", values.BadRequestBody, &tc)
	}

	var replyTo *uuid.UUID
	if raw := r.FormValue("reply_to_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondWithError(fieldErrors{"reply_to_id": "uuid"}, "validation failed", values.BadRequestBody, &tc)
		}
		replyTo = &id
	}

	msg, status, message, err := api.SendImageHelper(r.Context(), groupID, userID, file, replyTo)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(status, message, msg)
}

func (api *API) LikeGroupMessage(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		return respondWithError(fieldErrors{"messageID": "uuid"}, "invalid message id", values.BadRequestBody, &tc)
	}

	res, err := api.Deps.Groups.ToggleMessageLike(r.Context(), groupID, messageID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to toggle like")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Like updated", res)
}

func (api *API) ShareGroupLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	var req model.ShareLocationRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	shared, err := api.Deps.Groups.ShareLocation(r.Context(), groupID, userID, req)
	if err != nil {
		status, message := groupFailure(err, "Failed to share location")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Created, "Location shared successfully", shared)
}

func (api *API) GroupLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	resp, status, message, err := api.SharedLocationsHelper(r.Context(), groupID, userID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(status, message, resp)
}

// decodeModeration reads and validates a kick/ban/unban body.
func decodeModeration(r *http.Request, tc *tracing.Context) (model.ModerationRequest, *ServerResponse) {
	var req model.ModerationRequest
	if decodeErr := util.DecodeJSONBody(tc, r.Body, &req); decodeErr != nil {
		return req, respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return req, respondWithError(err, "validation failed", values.BadRequestBody, tc)
	}
	return req, nil
}

func (api *API) KickMember(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}
	req, rejected := decodeModeration(r, &tc)
	if rejected != nil {
		return rejected
	}

	if err := api.Deps.Groups.Kick(r.Context(), groupID, userID, req.UserID, req.Reason); err != nil {
		status, message := groupFailure(err, "Failed to remove member")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Member removed from group", nil)
}

func (api *API) BanMember(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}
	req, rejected := decodeModeration(r, &tc)
	if rejected != nil {
		return rejected
	}

	if err := api.Deps.Groups.Ban(r.Context(), groupID, userID, req.UserID, req.Reason); err != nil {
		status, message := groupFailure(err, "Failed to ban user")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "User banned from group", nil)
}

func (api *API) UnbanMember(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}
	req, rejected := decodeModeration(r, &tc)
	if rejected != nil {
		return rejected
	}

	if err := api.Deps.Groups.Unban(r.Context(), groupID, userID, req.UserID); err != nil {
		status, message := groupFailure(err, "Failed to unban user")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "User unbanned", nil)
}

func (api *API) BannedMembers(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	bans, err := api.Deps.Groups.Bans(r.Context(), groupID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to get banned users")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Banned users retrieved successfully", bans)
}

func (api *API) ChangeMemberRole(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, userID, groupID, rejected := groupRequest(r)
	if rejected != nil {
		return rejected
	}

	var req model.ChangeRoleRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	if err := api.Deps.Groups.ChangeRole(r.Context(), groupID, userID, req.UserID, req.NewRole); err != nil {
		status, message := groupFailure(err, "Failed to change role")
		return respondWithError(err, message, status, &tc)
	}
	return groupResponse(values.Success, "Role updated successfully", map[string]interface{}{
		"user_id":  req.UserID,
		"new_role": req.NewRole,
	})
}
