package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegraded_RequiresBound(t *testing.T) {
	_, err := mockDB("mysql57").Descendants(plain).Plan(1)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "mysql57")
}

func TestDegraded_Descendants(t *testing.T) {
	rel := mockDB("mysql57").Descendants(plain).MaxDepth(2)

	plan, err := rel.Plan(1)
	require.NoError(t, err)
	assert.Empty(t, plan.CTEs)

	sql, args := plan.Statement()
	assert.Equal(t, "SELECT `adjacency_tree`.* FROM ("+
		"SELECT `adjacency_t0`.*, 0 AS `adjacency_depth`, CONCAT_WS(',', `adjacency_t0`.`id`) AS `adjacency_path`, 0 AS `adjacency_is_cycle`, `adjacency_t0`.`id` AS `adjacency_group` "+
		"FROM `users` AS `adjacency_t0` WHERE `adjacency_t0`.`id`=? "+
		"UNION ALL "+
		"SELECT `adjacency_t1`.*, 1 AS `adjacency_depth`, CONCAT_WS(',', `adjacency_t0`.`id`, `adjacency_t1`.`id`) AS `adjacency_path`, "+
		"(`adjacency_t1`.`id` IN (`adjacency_t0`.`id`)) AS `adjacency_is_cycle`, `adjacency_t0`.`id` AS `adjacency_group` "+
		"FROM `users` AS `adjacency_t0` INNER JOIN `users` AS `adjacency_t1` ON `adjacency_t1`.`parent_id` = `adjacency_t0`.`id` WHERE `adjacency_t0`.`id`=? "+
		"UNION ALL "+
		"SELECT `adjacency_t2`.*, 2 AS `adjacency_depth`, CONCAT_WS(',', `adjacency_t0`.`id`, `adjacency_t1`.`id`, `adjacency_t2`.`id`) AS `adjacency_path`, "+
		"(`adjacency_t2`.`id` IN (`adjacency_t0`.`id`, `adjacency_t1`.`id`)) AS `adjacency_is_cycle`, `adjacency_t0`.`id` AS `adjacency_group` "+
		"FROM `users` AS `adjacency_t0` INNER JOIN `users` AS `adjacency_t1` ON `adjacency_t1`.`parent_id` = `adjacency_t0`.`id` "+
		"INNER JOIN `users` AS `adjacency_t2` ON `adjacency_t2`.`parent_id` = `adjacency_t1`.`id` "+
		"WHERE `adjacency_t0`.`id`=? AND `adjacency_t1`.`id` NOT IN (`adjacency_t0`.`id`)"+
		") AS `adjacency_tree` WHERE `adjacency_tree`.`adjacency_depth` <> 0 "+
		"ORDER BY `adjacency_tree`.`adjacency_depth`, `adjacency_tree`.`id`", sql)
	assert.Equal(t, []interface{}{1, 1, 1}, args)
}

func TestDegraded_AncestorsWithHopLimitAndScopes(t *testing.T) {
	db := mockDB("mysql57")
	db.hopLimit = 2

	rel := db.Ancestors(plain).WithIntermediateScope("", Raw("[[active]] = ?", 1))
	plan, err := rel.Plan(8)
	require.NoError(t, err)

	sql, args := plan.Statement()
	assert.Contains(t, sql, "-1 AS `adjacency_depth`, CONCAT_WS(',', `adjacency_t1`.`id`, `adjacency_t0`.`id`)")
	assert.Contains(t, sql, "-2 AS `adjacency_depth`, CONCAT_WS(',', `adjacency_t2`.`id`, `adjacency_t1`.`id`, `adjacency_t0`.`id`)")
	assert.Contains(t, sql, "ON `adjacency_t1`.`id` = `adjacency_t0`.`parent_id`")
	assert.Contains(t, sql, "AND (`adjacency_t1`.`active` = ?) AND (`adjacency_t2`.`active` = ?)")
	assert.Equal(t, []interface{}{8, 8, 1, 8, 1, 1}, args)
}

func TestDegraded_TrackingIgnored(t *testing.T) {
	rel := mockDB("mysql57").Descendants(plain).MaxDepth(1).Tracking(TrackDepth)

	plan, err := rel.Plan(1)
	require.NoError(t, err)
	assert.Contains(t, plan.String(), "AS `adjacency_path`")
}

func TestDegraded_ExistenceInlined(t *testing.T) {
	db := mockDB("mysql57")
	rel := db.Relation(DescendantsOf(plain), posts).MaxDepth(1)

	plan, err := db.Select().From("users").Has(rel, ">=", 1).Build()
	require.NoError(t, err)
	assert.Empty(t, plan.CTEs)

	sql := plan.String()
	assert.True(t, strings.HasPrefix(sql, "SELECT `users`.* FROM `users` WHERE EXISTS (SELECT 1 FROM `posts` INNER JOIN (SELECT"))
	assert.Contains(t, sql, ") AS `adjacency_tree` ON `posts`.`user_id` = `adjacency_tree`.`id` WHERE `adjacency_tree`.`adjacency_group` = `users`.`id`")
	assert.NotContains(t, sql, "WITH")
}

func TestDegraded_Update(t *testing.T) {
	rel := mockDB("mysql57").Descendants(plain).MaxDepth(1)

	plan, err := rel.UpdatePlan(1, map[string]interface{}{"flag": 1})
	require.NoError(t, err)

	sql, args := plan.Statement()
	assert.True(t, strings.HasPrefix(sql, "UPDATE `users` SET `flag` = ? WHERE `users`.`id` IN (SELECT `adjacency_affected`.`adjacency_key` FROM (SELECT DISTINCT `adjacency_tree`.`id` AS `adjacency_key` FROM (SELECT"))
	assert.Equal(t, []interface{}{1, 1, 1}, args)
}
