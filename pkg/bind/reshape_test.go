package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReshapePasswd(t *testing.T) {
	body := []byte(`{"result":{"username":"truus","passwd":"x","uid":1000,"gid":100,"gecos":"Truus","dir":"/home/truus","shell":"/bin/sh"}}`)
	line := reshape(CmdGetPwNam, body)
	assert.Equal(t, "200 truus:x:1000:100:Truus:/home/truus:/bin/sh", line)
}

func TestReshapeGroup(t *testing.T) {
	body := []byte(`{"result":{"name":"wheel","passwd":"x","gid":10,"mem":["truus","henk"]}}`)
	line := reshape(CmdGetGrNam, body)
	assert.Equal(t, "200 wheel:x:10:truus,henk", line)
}

func TestReshapeGidList(t *testing.T) {
	body := []byte(`{"result":{"username":"truus","gidlist":[100,10,20]}}`)
	line := reshape(CmdGetGidList, body)
	assert.Equal(t, "200 truus:100,10,20", line)
}

func TestReshapeAuth(t *testing.T) {
	body := []byte(`{"result":{}}`)
	assert.Equal(t, "200 OK", reshape(CmdAuth, body))
}

func TestReshapeServerError(t *testing.T) {
	body := []byte(`{"error":{"code":404,"message":"no such user"}}`)
	assert.Equal(t, "404 no such user", reshape(CmdGetPwNam, body))
}

func TestReshapeRejectsNULByte(t *testing.T) {
	body := []byte("{\"result\":{\"username\":\"tr\x00uus\"}}")
	line := reshape(CmdGetPwNam, body)
	assert.Equal(t, "500 reply contains NUL byte", line)
}

func TestReshapeRejectsMalformedJSON(t *testing.T) {
	line := reshape(CmdGetPwNam, []byte("not json"))
	assert.Equal(t, "400 invalid JSON reply: invalid character 'o' in literal null (expecting 'u')", line)
}

func TestReshapeRejectsMissingResult(t *testing.T) {
	line := reshape(CmdGetPwNam, []byte(`{}`))
	assert.Equal(t, "500 reply missing result", line)
}

func TestReshapeRejectsExtraField(t *testing.T) {
	body := []byte(`{"result":{"username":"truus","passwd":"x","uid":1000,"gid":100,"gecos":"Truus","dir":"/home/truus","shell":"/bin/sh","extra":"nope"}}`)
	line := reshape(CmdGetPwNam, body)
	assert.Equal(t, "400 invalid passwd reply: expected exactly 7 field(s), got 8", line)
}

func TestReshapeRejectsMissingField(t *testing.T) {
	body := []byte(`{"result":{"username":"truus","passwd":"x","uid":1000,"gid":100,"gecos":"Truus","dir":"/home/truus"}}`)
	line := reshape(CmdGetPwNam, body)
	assert.Equal(t, `400 invalid passwd reply: missing required field "shell"`, line)
}
